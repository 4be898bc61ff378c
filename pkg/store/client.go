package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	sacarerr "github.com/sacarhq/sacar/pkg/errors"
)

// Client is the typed face of a Backend: values are JSON documents.
type Client struct {
	backend Backend
}

func NewClient(b Backend) *Client {
	return &Client{backend: b}
}

func (c *Client) Put(ctx context.Context, key string, v interface{}) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding value for %s", key)
	}
	return errors.Wrapf(c.backend.Put(ctx, key, bytes), "writing %s", key)
}

// Get reads and decodes a single key. A key that isn't there is
// reported as a missing error.
func (c *Client) Get(ctx context.Context, key string, v interface{}) (Index, error) {
	index, entries, err := c.backend.Query(ctx, key, QueryOptions{})
	if nf, ok := isNotFound(err); ok {
		return nf.Index, sacarerr.MissingError(key, err)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", key)
	}
	if len(entries) == 0 {
		return index, sacarerr.MissingError(key, &NotFoundError{Key: key, Index: index})
	}
	return index, errors.Wrapf(json.Unmarshal(entries[0].Value, v), "decoding %s", key)
}

// GetRecursive returns every entry under prefix; an empty prefix is
// not an error.
func (c *Client) GetRecursive(ctx context.Context, prefix string) (Index, []Entry, error) {
	return c.WatchRecursive(ctx, prefix, 0, 0)
}

// Watch blocks until key changes past fromIndex or wait elapses. A key
// that does not exist yet yields a nil entry with the index to resume
// from.
func (c *Client) Watch(ctx context.Context, key string, fromIndex Index, wait time.Duration) (Index, *Entry, error) {
	index, entries, err := c.backend.Query(ctx, key, QueryOptions{Index: fromIndex, Wait: wait})
	if nf, ok := isNotFound(err); ok {
		return nf.Index, nil, nil
	}
	if err != nil {
		return fromIndex, nil, errors.Wrapf(err, "watching %s", key)
	}
	if len(entries) == 0 {
		return index, nil, nil
	}
	return index, &entries[0], nil
}

func (c *Client) WatchRecursive(ctx context.Context, prefix string, fromIndex Index, wait time.Duration) (Index, []Entry, error) {
	index, entries, err := c.backend.Query(ctx, prefix, QueryOptions{Recurse: true, Index: fromIndex, Wait: wait})
	if nf, ok := isNotFound(err); ok {
		return nf.Index, nil, nil
	}
	if err != nil {
		return fromIndex, nil, errors.Wrapf(err, "watching %s", prefix)
	}
	return index, entries, nil
}

func (c *Client) DiscoverNodes(ctx context.Context, service, tag string) ([]Node, error) {
	nodes, err := c.backend.Nodes(ctx, service, tag)
	return nodes, errors.Wrapf(err, "discovering %s nodes tagged %q", service, tag)
}

func (c *Client) Register(ctx context.Context, reg Registration) (func() error, error) {
	deregister, err := c.backend.Register(ctx, reg)
	return deregister, errors.Wrapf(err, "registering %s as %s", reg.ID, reg.Service)
}

// Watcher follows a prefix, carrying the index from one blocking read
// to the next.
type Watcher struct {
	client *Client
	prefix string
	wait   time.Duration
	index  Index
}

func (c *Client) NewWatcher(prefix string, wait time.Duration) *Watcher {
	return &Watcher{client: c, prefix: prefix, wait: wait}
}

// Next returns the entries under the prefix. The first call returns
// straight away; later calls block until something changes or the
// wait elapses.
func (w *Watcher) Next(ctx context.Context) ([]Entry, error) {
	index, entries, err := w.client.WatchRecursive(ctx, w.prefix, w.index, w.wait)
	if err != nil {
		return nil, err
	}
	w.index = index
	return entries, nil
}

func (w *Watcher) Index() Index {
	return w.index
}
