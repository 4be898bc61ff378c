package main

import (
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/sacarhq/sacar/pkg/config"
	"github.com/sacarhq/sacar/pkg/store"
)

func newStore(cfg config.Config) (*store.Client, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreConsul:
		client, err := api.NewClient(&api.Config{
			Address: cfg.ConsulHost,
			Token:   cfg.ConsulHTTPToken,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "creating Consul client")
		}
		return store.NewClient(store.NewConsul(client, cfg.ConsulKeyPrefix)), func() {}, nil
	case config.StoreEtcd:
		client, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.EtcdEndpoints,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "connecting to etcd")
		}
		return store.NewClient(store.NewEtcd(client, cfg.EtcdPrefix)), func() { client.Close() }, nil
	}
	return nil, nil, errors.Errorf("unknown store backend %q", cfg.StoreBackend)
}
