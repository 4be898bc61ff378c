package store

import (
	"context"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
)

// Consul keeps everything under a single KV prefix, and finds nodes
// through the catalogue.
type Consul struct {
	client *api.Client
	prefix string
}

func NewConsul(client *api.Client, prefix string) *Consul {
	return &Consul{client: client, prefix: strings.Trim(prefix, "/")}
}

func (c *Consul) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + "/" + strings.TrimPrefix(k, "/")
}

func (c *Consul) relative(k string) string {
	if c.prefix == "" {
		return k
	}
	return strings.TrimPrefix(k, c.prefix+"/")
}

func (c *Consul) Put(ctx context.Context, key string, value []byte) error {
	_, err := c.client.KV().Put(&api.KVPair{Key: c.key(key), Value: value}, (&api.WriteOptions{}).WithContext(ctx))
	return err
}

func (c *Consul) Query(ctx context.Context, key string, opts QueryOptions) (Index, []Entry, error) {
	q := (&api.QueryOptions{
		WaitIndex: uint64(opts.Index),
		WaitTime:  opts.Wait,
	}).WithContext(ctx)

	var pairs api.KVPairs
	var meta *api.QueryMeta
	var err error
	if opts.Recurse {
		pairs, meta, err = c.client.KV().List(c.key(key), q)
	} else {
		var pair *api.KVPair
		pair, meta, err = c.client.KV().Get(c.key(key), q)
		if pair != nil {
			pairs = api.KVPairs{pair}
		}
	}
	if err != nil {
		return opts.Index, nil, errors.Wrap(err, "querying consul")
	}

	index := Index(meta.LastIndex)
	if len(pairs) == 0 {
		return index, nil, &NotFoundError{Key: key, Index: index}
	}
	entries := make([]Entry, 0, len(pairs))
	for _, p := range pairs {
		entries = append(entries, Entry{
			Key:   c.relative(p.Key),
			Value: p.Value,
			Index: Index(p.ModifyIndex),
		})
	}
	return index, entries, nil
}

func (c *Consul) Nodes(ctx context.Context, service, tag string) ([]Node, error) {
	services, _, err := c.client.Catalog().Service(service, tag, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(services))
	for _, s := range services {
		address := s.ServiceAddress
		if address == "" {
			address = s.Address
		}
		nodes = append(nodes, Node{ID: s.ServiceID, Address: address, Port: s.ServicePort})
	}
	return nodes, nil
}

func (c *Consul) Register(ctx context.Context, reg Registration) (func() error, error) {
	agent := c.client.Agent()
	err := agent.ServiceRegister(&api.AgentServiceRegistration{
		ID:      reg.ID,
		Name:    reg.Service,
		Tags:    reg.Tags,
		Address: reg.Address,
		Port:    reg.Port,
	})
	if err != nil {
		return nil, err
	}
	return func() error {
		return agent.ServiceDeregister(reg.ID)
	}, nil
}
