package orchestrator

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"

	"github.com/sacarhq/sacar/pkg/checks"
	sacarmetrics "github.com/sacarhq/sacar/pkg/metrics"
	"github.com/sacarhq/sacar/pkg/rollout"
)

// Wait follows the slaves' reports until all of them are done, or the
// timeout passes, and then completes the check run.
func (o *Orchestrator) Wait(ctx context.Context, r *Rollout) error {
	logger := log.With(o.Logger, "repo", r.Repo, "sha", r.SHA)
	watcher := o.Repository.WatchSlaves(r.Repo, r.SHA, o.WatchWait)

	var (
		ready, failed int
		timedOut      bool
	)
	for {
		if err := o.limiter.Wait(ctx); err != nil {
			return o.abort(ctx, r, err)
		}
		statuses, err := watcher.Next(ctx)
		if err != nil {
			return o.abort(ctx, r, err)
		}
		ready, failed = count(statuses)

		summary := fmt.Sprintf("Preparing hosts (%d of %d ready)", ready, r.Slaves)
		if _, err := o.Reporter.ReportInProgress(ctx, r.Target, r.CheckRunID, r.SHA, r.StartedAt, "Preparing hosts", summary); err != nil {
			return o.abort(ctx, r, err)
		}

		if ready >= r.Slaves {
			break
		}
		if o.Clock.Since(r.StartedAt) > o.Timeout {
			timedOut = true
			break
		}
	}

	var (
		conclusion = checks.Success
		output     = checks.Output{
			Title:   "Prepared",
			Summary: "All hosts ready",
			Text:    fmt.Sprintf("Finished preparing all %d hosts", r.Slaves),
		}
	)
	switch {
	case timedOut:
		conclusion = checks.Failure
		output = checks.Output{
			Title:   "Timed out",
			Summary: fmt.Sprintf("Timed out while preparing hosts (%d of %d ready)", ready, r.Slaves),
			Text:    fmt.Sprintf("Timed out after %s, %d of %d hosts ready", o.Timeout, ready, r.Slaves),
		}
	case failed > 0:
		conclusion = checks.Failure
		output = checks.Output{
			Title:   "Failed",
			Summary: fmt.Sprintf("%d of %d hosts failed to prepare", failed, r.Slaves),
			Text:    fmt.Sprintf("%d of %d hosts ready, %d failed", ready, r.Slaves, failed),
		}
	}
	logger.Log("conclusion", conclusion, "ready", ready, "failed", failed, "slaves", r.Slaves)
	return o.complete(ctx, r, conclusion, output)
}

func (o *Orchestrator) abort(ctx context.Context, r *Rollout, cause error) error {
	o.Logger.Log("repo", r.Repo, "sha", r.SHA, "wait", "aborted", "err", cause)
	// The context may be what failed; the report should still go out.
	if err := o.complete(context.WithoutCancel(ctx), r, checks.Failure, checks.Output{
		Title:   "Failed",
		Summary: "Error while waiting for hosts",
		Text:    cause.Error(),
	}); err != nil {
		o.Logger.Log("repo", r.Repo, "sha", r.SHA, "report", checks.Failure, "err", err)
	}
	return cause
}

func (o *Orchestrator) complete(ctx context.Context, r *Rollout, conclusion checks.Conclusion, output checks.Output) error {
	rolloutDuration.With(sacarmetrics.LabelConclusion, string(conclusion)).Observe(o.Clock.Since(r.StartedAt).Seconds())

	status := rollout.StatusPrepared
	if conclusion != checks.Success {
		status = rollout.StatusFailed
	}
	state, err := o.Repository.State(ctx, r.Repo, r.SHA)
	if err == nil {
		state.Status = status
		err = o.Repository.PutState(ctx, r.Repo, r.SHA, state)
	}
	if err != nil {
		o.Logger.Log("repo", r.Repo, "sha", r.SHA, "state", status, "err", err)
	}

	_, err = o.Reporter.ReportCompleted(ctx, r.Target, r.CheckRunID, r.SHA, conclusion, output)
	return err
}

func count(statuses map[string]rollout.SlaveStatus) (ready, failed int) {
	for _, s := range statuses {
		if !s.Done {
			continue
		}
		ready++
		if !s.Succeeded() {
			failed++
		}
	}
	return ready, failed
}
