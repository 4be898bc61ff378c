// Package store is the coordination store: a key/value space with
// blocking reads, shared between the master and its slaves, plus the
// service catalogue used to find the slaves.
package store

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Index is a monotonically increasing modification index. Passing the
// index from one read into the next turns that read into a blocking
// query that waits for something newer.
type Index uint64

type Entry struct {
	Key   string
	Value []byte
	Index Index
}

type QueryOptions struct {
	// Recurse treats the key as a prefix and returns every entry
	// beneath it.
	Recurse bool
	// Index, when non-zero, makes the query block until the data is
	// newer than this, or Wait has elapsed.
	Index Index
	Wait  time.Duration
}

// Node is a registered instance of a service.
type Node struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// Endpoint is the base URL for talking HTTP to the node.
func (n Node) Endpoint() string {
	return "http://" + net.JoinHostPort(n.Address, strconv.Itoa(n.Port))
}

type Registration struct {
	ID      string
	Service string
	Tags    []string
	Address string
	Port    int
}

// Backend is what a particular coordination service has to provide.
// Keys are relative to whatever prefix the backend was configured
// with; a key ending in "/" is a directory-style prefix.
type Backend interface {
	Put(ctx context.Context, key string, value []byte) error
	// Query reads a key, or everything under a prefix. When nothing
	// is there it returns a *NotFoundError, which still carries the
	// index to resume from.
	Query(ctx context.Context, key string, opts QueryOptions) (Index, []Entry, error)
	Nodes(ctx context.Context, service, tag string) ([]Node, error)
	// Register announces this process in the service catalogue, and
	// returns a func that withdraws it again.
	Register(ctx context.Context, reg Registration) (func() error, error)
}

type NotFoundError struct {
	Key   string
	Index Index
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("key %q not found (index %d)", e.Key, e.Index)
}

func isNotFound(err error) (*NotFoundError, bool) {
	nf, ok := err.(*NotFoundError)
	return nf, ok
}
