package preparer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-kit/kit/log"

	"github.com/sacarhq/sacar/pkg/rollout"
)

// Deploy switches this host over to an already prepared version by
// running its deploy hook.
func (p *Preparer) Deploy(ctx context.Context, req rollout.DeployRequest) rollout.Result {
	logger := log.With(p.Logger, "repo", req.RepoName, "sha", req.SHA, "deployment", req.DeploymentID)
	target := p.Target(req.SHA)

	if _, err := os.Stat(target); os.IsNotExist(err) {
		return rollout.Failed("version %s does not exist", req.SHA)
	}
	if !exists(filepath.Join(target, DoneFile)) {
		return rollout.Failed("version %s is not prepared", req.SHA)
	}
	if !exists(filepath.Join(target, DeployHook)) {
		return rollout.Failed("version %s has no %s", req.SHA, DeployHook)
	}
	if err := p.Runner.Run(ctx, hook(target, DeployHook, req.SHA)); err != nil {
		logger.Log("step", "deploy", "err", err)
		return rollout.Failed("failed to run %s: %s", DeployHook, err)
	}
	logger.Log("deployed", true)
	return rollout.Succeeded("finished deploy of %s", req.SHA)
}
