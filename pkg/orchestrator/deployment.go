package orchestrator

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"golang.org/x/sync/errgroup"

	"github.com/sacarhq/sacar/pkg/checks"
	"github.com/sacarhq/sacar/pkg/rollout"
)

const (
	DeploymentPending = "pending"
	DeploymentFailure = "failure"
)

// Deployment asks every slave to switch to a prepared commit. Events
// for other environments are ignored.
func (o *Orchestrator) Deployment(ctx context.Context, ev rollout.DeploymentEvent) error {
	repo, sha := ev.Repository.FullName, ev.Deployment.SHA
	logger := log.With(o.Logger, "repo", repo, "sha", sha, "deployment", ev.Deployment.ID)
	if ev.Deployment.Environment != o.Environment {
		logger.Log("environment", ev.Deployment.Environment, "ignored", true)
		return nil
	}

	state, err := o.Repository.State(ctx, repo, sha)
	if err != nil {
		return err
	}
	state.DeploymentID = ev.Deployment.ID
	if err := o.Repository.PutState(ctx, repo, sha, state); err != nil {
		return err
	}

	target := checks.Target{Repo: repo, InstallationID: ev.Installation.ID}
	req := rollout.DeployRequest{RepoName: repo, SHA: sha, DeploymentID: ev.Deployment.ID}
	n, err := o.deploySlaves(ctx, req)
	if err != nil {
		logger.Log("fan-out", "deploy", "err", err)
		if rerr := o.Reporter.DeploymentStatus(ctx, target, ev.Deployment.ID, DeploymentFailure, "Error while asking hosts to deploy"); rerr != nil {
			logger.Log("report", DeploymentFailure, "err", rerr)
		}
		return err
	}
	logger.Log("slaves", n)
	return o.Reporter.DeploymentStatus(ctx, target, ev.Deployment.ID, DeploymentPending, fmt.Sprintf("Deploying to %d hosts", n))
}

func (o *Orchestrator) deploySlaves(ctx context.Context, req rollout.DeployRequest) (int, error) {
	nodes, err := o.Repository.DiscoverSlaves(ctx, o.ServiceName, o.SlaveTag)
	if err != nil {
		return 0, err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, node := range nodes {
		node := node
		g.Go(func() error {
			return o.Notifier.DeployHost(gctx, node, req)
		})
	}
	return len(nodes), g.Wait()
}
