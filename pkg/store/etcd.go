package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
)

const (
	nodesPrefix = "_nodes/"
	nodeTTL     = 15 // seconds
)

// Etcd offers the same contract as Consul on top of etcd revisions:
// the index of an entry is its ModRevision, and blocking reads are a
// watch from the revision after the one the caller last saw.
type Etcd struct {
	kv      clientv3.KV
	watcher clientv3.Watcher
	lease   clientv3.Lease
}

func NewEtcd(client *clientv3.Client, prefix string) *Etcd {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Etcd{
		kv:      namespace.NewKV(client.KV, prefix),
		watcher: namespace.NewWatcher(client.Watcher, prefix),
		lease:   namespace.NewLease(client.Lease, prefix),
	}
}

func (e *Etcd) Put(ctx context.Context, key string, value []byte) error {
	_, err := e.kv.Put(ctx, key, string(value))
	return err
}

func (e *Etcd) Query(ctx context.Context, key string, opts QueryOptions) (Index, []Entry, error) {
	var ops []clientv3.OpOption
	if opts.Recurse {
		ops = append(ops, clientv3.WithPrefix())
	}

	index, entries, err := e.get(ctx, key, ops)
	_, missing := isNotFound(err)
	if (err != nil && !missing) || opts.Index == 0 || opts.Wait <= 0 {
		return index, entries, err
	}
	// The index of a missing key is the store's revision, which moves
	// with writes anywhere; only an event on the key ends the wait.
	if !missing && index > opts.Index {
		return index, entries, err
	}

	if err := e.waitForChange(ctx, key, opts, ops); err != nil {
		return opts.Index, nil, err
	}
	return e.get(ctx, key, ops)
}

func (e *Etcd) get(ctx context.Context, key string, ops []clientv3.OpOption) (Index, []Entry, error) {
	resp, err := e.kv.Get(ctx, key, ops...)
	if err != nil {
		return 0, nil, errors.Wrap(err, "querying etcd")
	}
	if len(resp.Kvs) == 0 {
		index := Index(resp.Header.Revision)
		return index, nil, &NotFoundError{Key: key, Index: index}
	}
	var index Index
	entries := make([]Entry, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		entries = append(entries, Entry{
			Key:   string(kv.Key),
			Value: kv.Value,
			Index: Index(kv.ModRevision),
		})
		if Index(kv.ModRevision) > index {
			index = Index(kv.ModRevision)
		}
	}
	return index, entries, nil
}

// waitForChange returns when there's an event after opts.Index, or the
// wait has elapsed. Compaction and other watch errors just end the
// wait early; the caller reads afresh either way.
func (e *Etcd) waitForChange(ctx context.Context, key string, opts QueryOptions, ops []clientv3.OpOption) error {
	wctx, cancel := context.WithTimeout(ctx, opts.Wait)
	defer cancel()

	ops = append(ops, clientv3.WithRev(int64(opts.Index)+1))
	select {
	case <-e.watcher.Watch(clientv3.WithRequireLeader(wctx), key, ops...):
	case <-wctx.Done():
	}
	return ctx.Err()
}

func nodeKey(service, tag, id string) string {
	return nodesPrefix + service + "/" + tag + "/" + id
}

func (e *Etcd) Nodes(ctx context.Context, service, tag string) ([]Node, error) {
	resp, err := e.kv.Get(ctx, nodesPrefix+service+"/"+tag+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var n Node
		if err := json.Unmarshal(kv.Value, &n); err != nil {
			return nil, errors.Wrapf(err, "decoding node at %s", kv.Key)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Register writes one key per tag, all bound to a lease that is kept
// alive until the returned func is called.
func (e *Etcd) Register(ctx context.Context, reg Registration) (func() error, error) {
	value, err := json.Marshal(Node{ID: reg.ID, Address: reg.Address, Port: reg.Port})
	if err != nil {
		return nil, err
	}
	grant, err := e.lease.Grant(ctx, nodeTTL)
	if err != nil {
		return nil, errors.Wrap(err, "granting lease")
	}
	tags := reg.Tags
	if len(tags) == 0 {
		tags = []string{""}
	}
	for _, tag := range tags {
		if _, err := e.kv.Put(ctx, nodeKey(reg.Service, tag, reg.ID), string(value), clientv3.WithLease(grant.ID)); err != nil {
			return nil, err
		}
	}

	keepCtx, stop := context.WithCancel(context.Background())
	alive, err := e.lease.KeepAlive(keepCtx, grant.ID)
	if err != nil {
		stop()
		return nil, errors.Wrap(err, "keeping lease alive")
	}
	go func() {
		for range alive {
		}
	}()

	return func() error {
		stop()
		revokeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := e.lease.Revoke(revokeCtx, grant.ID)
		return err
	}, nil
}
