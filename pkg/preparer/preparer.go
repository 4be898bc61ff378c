// Package preparer gets a version of the application ready to run on
// this host: it downloads and unpacks the build artifact, builds its
// virtualenv and runs its prepare hook.
package preparer

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/sacarhq/sacar/pkg/blob"
	sacarmetrics "github.com/sacarhq/sacar/pkg/metrics"
	"github.com/sacarhq/sacar/pkg/rollout"
)

const (
	LockFile         = "prepare.pid"
	DoneFile         = "prepare.done"
	VenvDir          = ".venv"
	RuntimeFile      = "python-version"
	RequirementsFile = "requirements.txt"
	WheelsDir        = "wheels"
	PrepareHook      = "bin/prepare"
	DeployHook       = "bin/deploy"
)

var prepareDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
	Namespace: "sacar",
	Subsystem: "slave",
	Name:      "prepare_duration_seconds",
	Help:      "Duration of preparing a version on this host, in seconds.",
	Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
}, []string{sacarmetrics.LabelSuccess})

// StatusWriter records how preparation is going, for the master to
// see.
type StatusWriter interface {
	PutSlaveStatus(ctx context.Context, repo, sha, hostname string, s rollout.SlaveStatus) error
}

type Config struct {
	Hostname          string
	VersionsDirectory string
	Fetcher           blob.Fetcher
	Runtimes          *Runtimes
	Runner            Runner
	Statuses          StatusWriter
	Logger            log.Logger
}

type Preparer struct {
	Config
}

func New(c Config) *Preparer {
	if c.Runner == nil {
		c.Runner = ExecRunner{}
	}
	if c.Logger == nil {
		c.Logger = log.NewNopLogger()
	}
	return &Preparer{Config: c}
}

// Target is the directory a commit is prepared in.
func (p *Preparer) Target(sha string) string {
	return filepath.Join(p.VersionsDirectory, sha)
}

// Prepare runs the whole pipeline for one artifact and reports the
// outcome. The returned error is only about reporting; how the
// preparation itself went is in the Result.
func (p *Preparer) Prepare(ctx context.Context, ev rollout.TarballReadyEvent) (rollout.Result, error) {
	logger := log.With(p.Logger, "repo", ev.RepoName, "sha", ev.SHA)
	if err := p.Statuses.PutSlaveStatus(ctx, ev.RepoName, ev.SHA, p.Hostname, rollout.SlaveStatus{Done: false}); err != nil {
		return rollout.Result{}, err
	}

	started := time.Now()
	res := p.run(ctx, ev, logger)
	prepareDuration.With(sacarmetrics.LabelSuccess, fmt.Sprint(res.Success)).Observe(time.Since(started).Seconds())
	logger.Log("prepared", res.Success, "message", res.Message)

	// The master is waiting on this, even if we were cancelled.
	err := p.Statuses.PutSlaveStatus(context.WithoutCancel(ctx), ev.RepoName, ev.SHA, p.Hostname, rollout.Finished(res))
	return res, err
}

func (p *Preparer) run(ctx context.Context, ev rollout.TarballReadyEvent, logger log.Logger) (res rollout.Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log("panic", r)
			res = rollout.Failed("%v", r)
		}
	}()
	return p.prepare(ctx, ev, logger)
}

func (p *Preparer) prepare(ctx context.Context, ev rollout.TarballReadyEvent, logger log.Logger) rollout.Result {
	target := p.Target(ev.SHA)
	if err := os.MkdirAll(target, 0755); err != nil {
		return rollout.Failed("%s", err)
	}

	lock, err := AcquireLock(filepath.Join(target, LockFile))
	if err == ErrLocked {
		return rollout.Failed("someone is already preparing %q", target)
	}
	if err != nil {
		return rollout.Failed("locking %q: %s", target, err)
	}

	if exists(filepath.Join(target, DoneFile)) {
		lock.Release()
		return rollout.Succeeded("%q is already prepared", target)
	}

	tmp, err := p.download(ctx, ev)
	if err != nil {
		logger.Log("step", "download", "err", err)
		lock.Release()
		return rollout.Failed("failed to download artifact: %s", err)
	}
	defer os.Remove(tmp)

	// From here on a failure leaves the lock in place, so a half
	// prepared directory is not retried until someone cleans it up.
	if err := extractFile(tmp, target); err != nil {
		logger.Log("step", "extract", "err", err)
		return rollout.Failed("failed to extract artifact: %s", err)
	}

	content, err := ioutil.ReadFile(filepath.Join(target, RuntimeFile))
	if os.IsNotExist(err) {
		return rollout.Failed("missing %s in artifact", RuntimeFile)
	}
	if err != nil {
		return rollout.Failed("%s", err)
	}
	python, err := p.Runtimes.Resolve(strings.TrimSpace(string(content)))
	if err != nil {
		return rollout.Failed("%s", err)
	}

	venv := filepath.Join(target, VenvDir)
	if err := p.Runner.Run(ctx, Command{Path: python, Args: []string{"-m", "venv", venv}}); err != nil {
		logger.Log("step", "venv", "err", err)
		return rollout.Failed("failed to create virtualenv: %s", err)
	}

	pip := Command{
		Path: filepath.Join(venv, "bin", "pip"),
		Args: []string{
			"install", "--isolated", "--no-index",
			"--find-links", filepath.Join(target, WheelsDir),
			"-r", filepath.Join(target, RequirementsFile),
		},
		Env: environ(map[string]string{
			"VIRTUAL_ENV": venv,
			"PATH":        venvPath(venv),
			"PYTHONPATH":  "",
		}),
	}
	if err := p.Runner.Run(ctx, pip); err != nil {
		logger.Log("step", "install", "err", err)
		return rollout.Failed("failed to install dependencies: %s", err)
	}

	if exists(filepath.Join(target, PrepareHook)) {
		if err := p.Runner.Run(ctx, hook(target, PrepareHook, ev.SHA)); err != nil {
			logger.Log("step", "hook", "err", err)
			return rollout.Failed("failed to run %s: %s", PrepareHook, err)
		}
	}

	if err := ioutil.WriteFile(filepath.Join(target, DoneFile), nil, 0644); err != nil {
		return rollout.Failed("%s", err)
	}
	lock.Release()
	return rollout.Succeeded("prepared and ready for deployment")
}

func (p *Preparer) download(ctx context.Context, ev rollout.TarballReadyEvent) (string, error) {
	f, err := ioutil.TempFile("", "sacar-artifact-")
	if err != nil {
		return "", err
	}
	err = blob.FetchVerified(ctx, p.Fetcher, ev.TarballPath, ev.Digest, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func extractFile(path, target string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Extract(f, target)
}

func hook(target, script, sha string) Command {
	return Command{
		Path: filepath.Join(target, script),
		Dir:  target,
		Env: environ(map[string]string{
			"PATH":       venvPath(filepath.Join(target, VenvDir)),
			"COMMIT_SHA": sha,
			"PYTHONPATH": "",
		}),
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
