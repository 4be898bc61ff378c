package job

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/sacarhq/sacar/pkg/guid"
	sacarmetrics "github.com/sacarhq/sacar/pkg/metrics"
)

var (
	jobDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "sacar",
		Subsystem: "job",
		Name:      "duration_seconds",
		Help:      "Duration of background jobs, in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{sacarmetrics.LabelKind, sacarmetrics.LabelSuccess})
	queueLength = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: "sacar",
		Subsystem: "job",
		Name:      "queue_length_count",
		Help:      "Count of jobs waiting in the queue to be run.",
	}, []string{})
)

// Worker hands background work to a pool of goroutines, remembering
// how each job went.
type Worker struct {
	queue    *Queue
	statuses *StatusCache
	logger   log.Logger
	detached sync.WaitGroup
}

func NewWorker(q *Queue, statuses *StatusCache, logger log.Logger) *Worker {
	return &Worker{queue: q, statuses: statuses, logger: logger}
}

// Submit queues fn to be run, and returns the id it can be looked up
// by.
func (w *Worker) Submit(kind string, fn JobFunc) ID {
	id := ID(guid.New())
	w.statuses.SetStatus(id, Status{Kind: kind, StatusString: StatusQueued})
	w.queue.Enqueue(&Job{ID: id, Kind: kind, Do: fn})
	queueLength.Set(float64(w.queue.Len()))
	return id
}

// Go runs fn on its own goroutine straight away, outside the pool. It
// is for jobs that spend most of their time waiting on something else,
// and would otherwise keep queued jobs from a worker.
func (w *Worker) Go(kind string, fn JobFunc) ID {
	j := &Job{ID: ID(guid.New()), Kind: kind, Do: fn}
	w.statuses.SetStatus(j.ID, Status{Kind: kind, StatusString: StatusQueued})
	w.detached.Add(1)
	go func() {
		defer w.detached.Done()
		w.run(j)
	}()
	return j.ID
}

// Wait blocks until every job started with Go has returned.
func (w *Worker) Wait() {
	w.detached.Wait()
}

func (w *Worker) Status(id ID) (Status, bool) {
	return w.statuses.Status(id)
}

// Start runs n goroutines taking jobs off the queue, until stop is
// closed.
func (w *Worker) Start(n int, stop <-chan struct{}, wg *sync.WaitGroup) {
	for i := 0; i < n; i++ {
		wg.Add(1)
		go w.work(stop, wg)
	}
}

func (w *Worker) work(stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-stop:
			return
		case j := <-w.queue.Ready():
			queueLength.Set(float64(w.queue.Len()))
			w.run(j)
		}
	}
}

func (w *Worker) run(j *Job) {
	logger := log.With(w.logger, "jobID", j.ID, "kind", j.Kind)
	w.statuses.SetStatus(j.ID, Status{Kind: j.Kind, StatusString: StatusRunning})

	started := time.Now()
	err := w.do(j, logger)
	jobDuration.With(sacarmetrics.LabelKind, j.Kind, sacarmetrics.LabelSuccess, fmt.Sprint(err == nil)).Observe(time.Since(started).Seconds())

	if err != nil {
		logger.Log("state", "done", "success", "false", "err", err)
		w.statuses.SetStatus(j.ID, Status{Kind: j.Kind, StatusString: StatusFailed, Err: err.Error()})
		return
	}
	logger.Log("state", "done", "success", "true")
	w.statuses.SetStatus(j.ID, Status{Kind: j.Kind, StatusString: StatusSucceeded})
}

// do runs the job, turning a panic into an error so one bad job
// doesn't take the worker down with it.
func (w *Worker) do(j *Job, logger log.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return j.Do(logger)
}
