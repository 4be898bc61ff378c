// Package orchestrator drives rollouts from the master: it records
// commits as they are pushed, asks every slave to prepare a build
// once its artifact is ready, and reports how that goes as a check
// run on the commit.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/jonboulle/clockwork"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/ryanuber/go-glob"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sacarhq/sacar/pkg/checks"
	sacarmetrics "github.com/sacarhq/sacar/pkg/metrics"
	"github.com/sacarhq/sacar/pkg/rollout"
	"github.com/sacarhq/sacar/pkg/store"
)

var rolloutDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
	Namespace: "sacar",
	Subsystem: "master",
	Name:      "rollout_duration_seconds",
	Help:      "Duration of preparing a commit across all slaves, in seconds.",
	Buckets:   []float64{5, 10, 30, 60, 120, 300, 600, 1200},
}, []string{sacarmetrics.LabelConclusion})

// Notifier tells slaves what to do.
type Notifier interface {
	PrepareHost(ctx context.Context, node store.Node, ev rollout.TarballReadyEvent) error
	DeployHost(ctx context.Context, node store.Node, req rollout.DeployRequest) error
}

type Config struct {
	Repository *rollout.Repository
	Reporter   *checks.Reporter
	Notifier   Notifier
	// DeployBranch is a glob; only commits on matching branches are
	// prepared.
	DeployBranch string
	// Environment is the deployment environment this master acts on.
	Environment string
	ServiceName string
	SlaveTag    string
	// Timeout bounds how long slaves get to prepare a commit.
	Timeout   time.Duration
	WatchWait time.Duration
	// WatchMinInterval spaces out consecutive watches; zero means no
	// limit.
	WatchMinInterval time.Duration
	Clock            clockwork.Clock
	Logger           log.Logger
}

type Orchestrator struct {
	Config
	limiter *rate.Limiter
}

func New(c Config) *Orchestrator {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = log.NewNopLogger()
	}
	limit := rate.Inf
	if c.WatchMinInterval > 0 {
		limit = rate.Every(c.WatchMinInterval)
	}
	return &Orchestrator{Config: c, limiter: rate.NewLimiter(limit, 1)}
}

// Rollout is a commit being prepared by the slaves.
type Rollout struct {
	Repo       string
	SHA        string
	Target     checks.Target
	CheckRunID int64
	Slaves     int
	StartedAt  time.Time
}

// CheckSuite starts tracking a commit when GitHub asks for its checks
// to be run.
func (o *Orchestrator) CheckSuite(ctx context.Context, ev rollout.CheckSuiteEvent) error {
	logger := log.With(o.Logger, "repo", ev.Repository.FullName, "sha", ev.CheckSuite.HeadSHA)
	if !ev.Triggers() {
		logger.Log("event", "check_suite", "action", ev.Action, "ignored", true)
		return nil
	}

	target := checks.Target{Repo: ev.Repository.FullName, InstallationID: ev.Installation.ID}
	id, err := o.Reporter.ReportQueued(ctx, target, ev.CheckSuite.HeadSHA, "Waiting for artifact", "Waiting for the build artifact of this commit")
	if err != nil {
		return err
	}
	logger.Log("event", "check_suite", "branch", ev.CheckSuite.HeadBranch, "run", id)
	return o.Repository.PutState(ctx, ev.Repository.FullName, ev.CheckSuite.HeadSHA, rollout.State{
		CheckRunID:     id,
		InstallationID: ev.Installation.ID,
		Status:         rollout.StatusWaitingForArtifact,
	})
}

// TarballReady asks every slave to prepare the commit's artifact. It
// returns a nil Rollout if the commit is not on the deploy branch.
// All slaves must accept the request; if any one of them doesn't, the
// rollout fails as a whole.
func (o *Orchestrator) TarballReady(ctx context.Context, ev rollout.TarballReadyEvent) (*Rollout, error) {
	logger := log.With(o.Logger, "repo", ev.RepoName, "sha", ev.SHA)
	state, err := o.Repository.State(ctx, ev.RepoName, ev.SHA)
	if err != nil {
		return nil, err
	}
	r := &Rollout{
		Repo:       ev.RepoName,
		SHA:        ev.SHA,
		Target:     checks.Target{Repo: ev.RepoName, InstallationID: state.InstallationID},
		CheckRunID: state.CheckRunID,
	}

	if branch := ev.Branch(); !glob.Glob(o.DeployBranch, branch) {
		logger.Log("branch", branch, "deploy-branch", o.DeployBranch, "skipped", true)
		_, err := o.Reporter.ReportCompleted(ctx, r.Target, r.CheckRunID, r.SHA, checks.Neutral, checks.Output{
			Title:   "Not prepared",
			Summary: fmt.Sprintf("Only commits on %s are prepared", o.DeployBranch),
			Text:    fmt.Sprintf("This commit is on %s.", branch),
		}, checks.PrepareAction)
		return nil, err
	}

	r.StartedAt = o.Clock.Now()
	n, err := o.prepareSlaves(ctx, ev)
	if err != nil {
		logger.Log("fan-out", "prepare", "err", err)
		o.reportFailure(ctx, r, "Error while asking hosts to prepare", err)
		return nil, err
	}
	r.Slaves = n

	state.Status = rollout.StatusPreparing
	state.ArtifactPath = ev.TarballPath
	if err := o.Repository.PutState(ctx, ev.RepoName, ev.SHA, state); err != nil {
		o.reportFailure(ctx, r, "Error while recording rollout", err)
		return nil, err
	}

	if _, err := o.Reporter.ReportInProgress(ctx, r.Target, r.CheckRunID, r.SHA, r.StartedAt, "Preparing hosts", fmt.Sprintf("Asked %d hosts to prepare", n)); err != nil {
		logger.Log("report", checks.InProgress, "err", err)
		o.reportFailure(ctx, r, "Error while reporting progress", err)
		state.Status = rollout.StatusFailed
		if perr := o.Repository.PutState(ctx, ev.RepoName, ev.SHA, state); perr != nil {
			logger.Log("state", rollout.StatusFailed, "err", perr)
		}
		return nil, err
	}
	logger.Log("slaves", n, "state", rollout.StatusPreparing)
	return r, nil
}

func (o *Orchestrator) prepareSlaves(ctx context.Context, ev rollout.TarballReadyEvent) (int, error) {
	nodes, err := o.Repository.DiscoverSlaves(ctx, o.ServiceName, o.SlaveTag)
	if err != nil {
		return 0, err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, node := range nodes {
		node := node
		g.Go(func() error {
			return o.Notifier.PrepareHost(gctx, node, ev)
		})
	}
	return len(nodes), g.Wait()
}

func (o *Orchestrator) reportFailure(ctx context.Context, r *Rollout, summary string, cause error) {
	_, err := o.Reporter.ReportCompleted(ctx, r.Target, r.CheckRunID, r.SHA, checks.Failure, checks.Output{
		Title:   "Failed",
		Summary: summary,
		Text:    cause.Error(),
	})
	if err != nil {
		o.Logger.Log("repo", r.Repo, "sha", r.SHA, "report", checks.Failure, "err", err)
	}
}
