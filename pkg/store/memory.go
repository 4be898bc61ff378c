package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a Backend held entirely in process. It keeps the blocking
// query semantics, so it stands in for a real store in tests and in
// single-host setups.
type Memory struct {
	mu      sync.Mutex
	index   Index
	entries map[string]Entry
	changed chan struct{}
	nodes   map[string]Registration
}

func NewMemory() *Memory {
	return &Memory{
		entries: map[string]Entry{},
		changed: make(chan struct{}),
		nodes:   map[string]Registration{},
	}
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index++
	v := make([]byte, len(value))
	copy(v, value)
	m.entries[key] = Entry{Key: key, Value: v, Index: m.index}
	close(m.changed)
	m.changed = make(chan struct{})
	return nil
}

func (m *Memory) Query(ctx context.Context, key string, opts QueryOptions) (Index, []Entry, error) {
	var timeout <-chan time.Time
	if opts.Index > 0 && opts.Wait > 0 {
		timer := time.NewTimer(opts.Wait)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		m.mu.Lock()
		index, entries := m.lookup(key, opts.Recurse)
		changed := m.changed
		m.mu.Unlock()

		if timeout == nil || index > opts.Index {
			return result(key, index, entries)
		}
		select {
		case <-changed:
		case <-timeout:
			return result(key, index, entries)
		case <-ctx.Done():
			return opts.Index, nil, ctx.Err()
		}
	}
}

func result(key string, index Index, entries []Entry) (Index, []Entry, error) {
	if len(entries) == 0 {
		return index, nil, &NotFoundError{Key: key, Index: index}
	}
	return index, entries, nil
}

// lookup must be called with the lock held.
func (m *Memory) lookup(key string, recurse bool) (Index, []Entry) {
	var entries []Entry
	var index Index
	for k, e := range m.entries {
		if k == key || (recurse && strings.HasPrefix(k, key)) {
			entries = append(entries, e)
			if e.Index > index {
				index = e.Index
			}
		}
	}
	if len(entries) == 0 {
		return m.index, nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return index, entries
}

func (m *Memory) Nodes(ctx context.Context, service, tag string) ([]Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var nodes []Node
	for _, reg := range m.nodes {
		if reg.Service != service || !hasTag(reg.Tags, tag) {
			continue
		}
		nodes = append(nodes, Node{ID: reg.ID, Address: reg.Address, Port: reg.Port})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

func (m *Memory) Register(ctx context.Context, reg Registration) (func() error, error) {
	m.mu.Lock()
	m.nodes[reg.ID] = reg
	m.mu.Unlock()
	return func() error {
		m.mu.Lock()
		delete(m.nodes, reg.ID)
		m.mu.Unlock()
		return nil
	}, nil
}

func hasTag(tags []string, tag string) bool {
	if tag == "" {
		return true
	}
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
