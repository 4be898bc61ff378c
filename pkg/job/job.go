package job

import (
	"sync"
	"sync/atomic"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// ErrNoSuchJob means the job is unknown, or so old it has been
// forgotten.
var ErrNoSuchJob = errors.New("no such job")

type ID string

// JobFunc does the work. It is given a logger that already carries
// the job's id and kind.
type JobFunc func(log.Logger) error

type Job struct {
	ID ID
	// e.g., "prepare", "wait"
	Kind string
	Do   JobFunc
}

type StatusString string

const (
	StatusQueued    StatusString = "queued"
	StatusRunning   StatusString = "running"
	StatusFailed    StatusString = "failed"
	StatusSucceeded StatusString = "succeeded"
)

// Status is what the /jobs endpoint reports. Err is only set once a
// job has failed.
type Status struct {
	Kind         string       `json:"kind"`
	Err          string       `json:"err,omitempty"`
	StatusString StatusString `json:"status"`
}

func (s Status) Error() string {
	return s.Err
}

// Queue hands jobs from submitters to workers without ever making a
// submitter wait for a worker to become free. The pending jobs are
// owned by the queue's own goroutine.
type Queue struct {
	incoming chan *Job
	ready    chan *Job
	sync     chan struct{}
	length   int64
}

// NewQueue starts the queue's goroutine, which runs until stop is
// closed. Jobs still pending at that point are dropped.
func NewQueue(stop <-chan struct{}, wg *sync.WaitGroup) *Queue {
	q := &Queue{
		incoming: make(chan *Job),
		ready:    make(chan *Job),
		sync:     make(chan struct{}),
	}
	wg.Add(1)
	go q.loop(stop, wg)
	return q
}

// Len is the number of jobs waiting for a worker. It may lag behind
// an Enqueue or a receive from Ready that has just happened.
func (q *Queue) Len() int {
	return int(atomic.LoadInt64(&q.length))
}

// Enqueue blocks only until the queue's goroutine has taken the job.
func (q *Queue) Enqueue(j *Job) {
	q.incoming <- j
}

// Ready is where workers receive jobs from, oldest first.
func (q *Queue) Ready() <-chan *Job {
	return q.ready
}

// Sync waits for the queue's goroutine to finish whatever it was
// doing. Used in tests.
func (q *Queue) Sync() {
	q.sync <- struct{}{}
}

func (q *Queue) loop(stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	var pending []*Job
	for {
		var (
			out  chan *Job
			head *Job
		)
		if len(pending) > 0 {
			out, head = q.ready, pending[0]
		}

		select {
		case <-stop:
			return
		case <-q.sync:
		case j := <-q.incoming:
			pending = append(pending, j)
			atomic.AddInt64(&q.length, 1)
		case out <- head:
			pending[0] = nil
			pending = pending[1:]
			atomic.AddInt64(&q.length, -1)
		}
	}
}
