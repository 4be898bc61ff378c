package job

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrder(t *testing.T) {
	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	defer func() {
		close(stop)
		wg.Wait()
	}()
	q := NewQueue(stop, wg)
	assert.Equal(t, 0, q.Len())

	select {
	case j := <-q.Ready():
		t.Fatalf("received %#v from an empty queue", j)
	default:
	}

	for _, id := range []ID{"prepare-1", "prepare-2", "wait-1"} {
		q.Enqueue(&Job{ID: id})
	}
	q.Sync()
	assert.Equal(t, 3, q.Len())

	for _, id := range []ID{"prepare-1", "prepare-2", "wait-1"} {
		j := <-q.Ready()
		require.NotNil(t, j)
		assert.Equal(t, id, j.ID)
	}
	q.Sync()
	assert.Equal(t, 0, q.Len())

	select {
	case j := <-q.Ready():
		t.Fatalf("received %#v from a drained queue", j)
	default:
	}
}

func TestQueueEnqueueNeverWaitsForWorkers(t *testing.T) {
	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	q := NewQueue(stop, wg)

	// nobody is receiving from Ready
	for i := 0; i < 100; i++ {
		q.Enqueue(&Job{Kind: "prepare"})
	}
	q.Sync()
	assert.Equal(t, 100, q.Len())

	close(stop)
	wg.Wait()
}
