package main

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/sacarhq/sacar/pkg/auth"
	"github.com/sacarhq/sacar/pkg/blob"
	"github.com/sacarhq/sacar/pkg/config"
	"github.com/sacarhq/sacar/pkg/http/slave"
	"github.com/sacarhq/sacar/pkg/preparer"
	"github.com/sacarhq/sacar/pkg/rollout"
	"github.com/sacarhq/sacar/pkg/store"
)

func (d *daemon) slave(cfg config.Config, storeClient *store.Client) (http.Handler, func() error, error) {
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, nil, err
	}
	runtimeMap, err := cfg.RuntimeMap()
	if err != nil {
		return nil, nil, err
	}
	runtimes, err := preparer.NewRuntimes(runtimeMap)
	if err != nil {
		return nil, nil, err
	}
	d.logger.Log("runtimes", len(runtimeMap), "versions", cfg.VersionsDirectory)

	p := preparer.New(preparer.Config{
		Hostname:          cfg.Hostname,
		VersionsDirectory: cfg.VersionsDirectory,
		Fetcher:           fetcher,
		Runtimes:          runtimes,
		Statuses:          rollout.NewRepository(storeClient),
		Logger:            log.With(d.logger, "component", "preparer"),
	})
	handler := slave.NewHandler(d.ctx, p, d.worker, slave.NewRouter())

	if !cfg.Register {
		return handler, nil, nil
	}
	deregister, err := d.register(cfg, storeClient)
	return handler, deregister, err
}

func newFetcher(cfg config.Config) (blob.Fetcher, error) {
	httpClient := &http.Client{}
	switch cfg.BlobBackend {
	case config.BlobGCS:
		key, err := auth.LoadServiceAccountKey(cfg.GCPKeyPath)
		if err != nil {
			return nil, err
		}
		tokens := auth.NewCache(auth.NewServiceAccountMinter(key, httpClient), nil)
		return blob.NewGCS(cfg.GCPBucket, tokens, httpClient), nil
	case config.BlobS3:
		awsConfig := aws.NewConfig()
		if cfg.S3Region != "" {
			awsConfig = awsConfig.WithRegion(cfg.S3Region)
		}
		sess, err := session.NewSession(awsConfig)
		if err != nil {
			return nil, errors.Wrap(err, "creating AWS session")
		}
		return blob.NewS3(cfg.S3Bucket, s3manager.NewDownloader(sess)), nil
	}
	return nil, errors.Errorf("unknown blob backend %q", cfg.BlobBackend)
}

// register puts this slave in the service catalogue, retrying until
// the store is reachable or the daemon is shutting down.
func (d *daemon) register(cfg config.Config, storeClient *store.Client) (func() error, error) {
	host, portString, err := net.SplitHostPort(cfg.AdvertiseAddress)
	if err != nil {
		return nil, errors.Wrap(err, "parsing advertise address")
	}
	port, err := strconv.Atoi(portString)
	if err != nil {
		return nil, errors.Wrap(err, "parsing advertise address")
	}
	reg := store.Registration{
		ID:      cfg.Hostname,
		Service: cfg.ServiceName,
		Tags:    []string{cfg.SlaveTag},
		Address: host,
		Port:    port,
	}

	logger := log.With(d.logger, "component", "registration")
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 2 * time.Minute

	var deregister func() error
	err = backoff.RetryNotify(func() error {
		var err error
		deregister, err = storeClient.Register(d.ctx, reg)
		return err
	}, backoff.WithContext(policy, d.ctx), func(err error, next time.Duration) {
		logger.Log("err", err, "retry-in", next)
	})
	if err != nil {
		return nil, errors.Wrap(err, "registering slave")
	}
	logger.Log("service", reg.Service, "id", reg.ID, "address", cfg.AdvertiseAddress)
	return deregister, nil
}
