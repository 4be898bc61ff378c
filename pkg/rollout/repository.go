package rollout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/sacarhq/sacar/pkg/store"
)

// Repository reads and writes rollout records in the coordination
// store.
type Repository struct {
	store *store.Client
}

func NewRepository(c *store.Client) *Repository {
	return &Repository{store: c}
}

func (r *Repository) State(ctx context.Context, repo, sha string) (State, error) {
	var s State
	_, err := r.store.Get(ctx, StateKey(repo, sha), &s)
	return s, err
}

func (r *Repository) PutState(ctx context.Context, repo, sha string, s State) error {
	return r.store.Put(ctx, StateKey(repo, sha), s)
}

func (r *Repository) PutSlaveStatus(ctx context.Context, repo, sha, hostname string, s SlaveStatus) error {
	return r.store.Put(ctx, SlaveKey(repo, sha, hostname), s)
}

func (r *Repository) DiscoverSlaves(ctx context.Context, service, tag string) ([]store.Node, error) {
	return r.store.DiscoverNodes(ctx, service, tag)
}

// SlaveWatcher follows the slave reports for one commit.
type SlaveWatcher struct {
	watcher *store.Watcher
}

func (r *Repository) WatchSlaves(repo, sha string, wait time.Duration) *SlaveWatcher {
	return &SlaveWatcher{watcher: r.store.NewWatcher(SlavePrefix(repo, sha), wait)}
}

// Next returns the status of every slave that has reported so far,
// keyed by hostname.
func (w *SlaveWatcher) Next(ctx context.Context) (map[string]SlaveStatus, error) {
	entries, err := w.watcher.Next(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make(map[string]SlaveStatus, len(entries))
	for _, e := range entries {
		var s SlaveStatus
		if err := json.Unmarshal(e.Value, &s); err != nil {
			return nil, errors.Wrapf(err, "decoding slave status at %s", e.Key)
		}
		statuses[hostname(e.Key)] = s
	}
	return statuses, nil
}

func hostname(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}
