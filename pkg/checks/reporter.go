package checks

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/jonboulle/clockwork"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	sacarmetrics "github.com/sacarhq/sacar/pkg/metrics"
)

var reportsTotal = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
	Namespace: "sacar",
	Subsystem: "checks",
	Name:      "reports_total",
	Help:      "Check run reports sent, by status and outcome.",
}, []string{sacarmetrics.LabelStatus, sacarmetrics.LabelSuccess})

// Target identifies where check runs go: a repository, and the app
// installation whose token may write to it.
type Target struct {
	Repo           string
	InstallationID int64
}

// API is the remote end of check runs and deployment statuses.
type API interface {
	// CreateOrUpdate creates a check run when id is zero, and
	// updates it otherwise. It returns the run's id.
	CreateOrUpdate(ctx context.Context, target Target, id int64, run CheckRun) (int64, error)
	DeploymentStatus(ctx context.Context, target Target, deploymentID int64, state, description string) error
}

// Reporter fills in the parts of a check run that are always the
// same, so callers only say what changed.
type Reporter struct {
	api   API
	name  string
	clock clockwork.Clock
}

func NewReporter(api API, name string, clock clockwork.Clock) *Reporter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reporter{api: api, name: name, clock: clock}
}

func (r *Reporter) report(ctx context.Context, target Target, id int64, run CheckRun) (int64, error) {
	run.Name = r.name
	if err := run.Validate(); err != nil {
		return id, err
	}
	newID, err := r.api.CreateOrUpdate(ctx, target, id, run)
	reportsTotal.With(sacarmetrics.LabelStatus, string(run.Status), sacarmetrics.LabelSuccess, boolString(err == nil)).Add(1)
	if err != nil {
		return id, err
	}
	return newID, nil
}

func (r *Reporter) ReportQueued(ctx context.Context, target Target, sha, title, summary string) (int64, error) {
	return r.report(ctx, target, 0, CheckRun{
		HeadSHA: sha,
		Status:  Queued,
		Output:  Output{Title: title, Summary: summary},
	})
}

func (r *Reporter) ReportInProgress(ctx context.Context, target Target, id int64, sha string, startedAt time.Time, title, summary string) (int64, error) {
	return r.report(ctx, target, id, CheckRun{
		HeadSHA:   sha,
		Status:    InProgress,
		StartedAt: startedAt,
		Output:    Output{Title: title, Summary: summary},
	})
}

func (r *Reporter) ReportCompleted(ctx context.Context, target Target, id int64, sha string, conclusion Conclusion, output Output, actions ...Action) (int64, error) {
	return r.report(ctx, target, id, CheckRun{
		HeadSHA:     sha,
		Status:      Completed,
		Conclusion:  conclusion,
		CompletedAt: r.clock.Now(),
		Output:      output,
		Actions:     actions,
	})
}

func (r *Reporter) DeploymentStatus(ctx context.Context, target Target, deploymentID int64, state, description string) error {
	return r.api.DeploymentStatus(ctx, target, deploymentID, state, description)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
