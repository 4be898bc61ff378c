// Package master serves GitHub's webhooks and the CI callback that
// start rollouts.
package master

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/google/go-github/v28/github"
	"github.com/gorilla/mux"

	sacarerr "github.com/sacarhq/sacar/pkg/errors"
	transport "github.com/sacarhq/sacar/pkg/http"
	"github.com/sacarhq/sacar/pkg/job"
	"github.com/sacarhq/sacar/pkg/orchestrator"
	"github.com/sacarhq/sacar/pkg/rollout"
)

const (
	KindWait       = "wait"
	KindDeployment = "deployment"
)

type Orchestrator interface {
	CheckSuite(ctx context.Context, ev rollout.CheckSuiteEvent) error
	TarballReady(ctx context.Context, ev rollout.TarballReadyEvent) (*orchestrator.Rollout, error)
	Wait(ctx context.Context, r *orchestrator.Rollout) error
	Deployment(ctx context.Context, ev rollout.DeploymentEvent) error
}

type Jobs interface {
	transport.JobStatuser
	Submit(kind string, fn job.JobFunc) job.ID
	// Go is for waiting on a rollout, which can take as long as the
	// prepare timeout.
	Go(kind string, fn job.JobFunc) job.ID
}

func NewRouter() *mux.Router {
	r := transport.NewMasterRouter()
	transport.NotFound(r)
	return r
}

// NewHandler attaches the master's handlers to r. Webhook deliveries
// must be signed with secret. Background work runs in ctx.
func NewHandler(ctx context.Context, o Orchestrator, jobs Jobs, secret []byte, logger log.Logger, r *mux.Router) http.Handler {
	handle := HTTPServer{ctx: ctx, orchestrator: o, jobs: jobs, secret: secret, logger: logger}

	transport.HandleCommon(r, jobs)
	r.Get(transport.GitHubWebhook).HandlerFunc(handle.GitHubWebhook)
	r.Get(transport.TarballReady).HandlerFunc(handle.TarballReady)

	return transport.Instrument(r)
}

type HTTPServer struct {
	ctx          context.Context
	orchestrator Orchestrator
	jobs         Jobs
	secret       []byte
	logger       log.Logger
}

func (s HTTPServer) GitHubWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, s.secret)
	if err != nil {
		s.logger.Log("webhook", "rejected", "err", err)
		transport.WriteError(w, r, http.StatusUnauthorized, transport.ErrorUnauthorized)
		return
	}

	switch event := github.WebHookType(r); event {
	case "check_suite":
		var ev rollout.CheckSuiteEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			transport.ErrorResponse(w, r, sacarerr.InvalidPayloadError(err))
			return
		}
		if err := s.orchestrator.CheckSuite(r.Context(), ev); err != nil {
			transport.ErrorResponse(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	case "deployment":
		var ev rollout.DeploymentEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			transport.ErrorResponse(w, r, sacarerr.InvalidPayloadError(err))
			return
		}
		id := s.jobs.Submit(KindDeployment, func(log.Logger) error {
			return s.orchestrator.Deployment(s.ctx, ev)
		})
		transport.JSONResponseWithCode(w, r, http.StatusAccepted, id)
	default:
		s.logger.Log("webhook", event, "ignored", true)
		w.WriteHeader(http.StatusOK)
	}
}

// TarballReady asks the slaves to prepare within the request, so a
// failure to reach them is the caller's error, then waits for them in
// the background.
func (s HTTPServer) TarballReady(w http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		transport.WriteError(w, r, http.StatusBadRequest, err)
		return
	}
	ev, err := rollout.ParseTarballReady(body)
	if err != nil {
		transport.ErrorResponse(w, r, sacarerr.InvalidPayloadError(err))
		return
	}

	ro, err := s.orchestrator.TarballReady(r.Context(), ev)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	if ro == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	id := s.jobs.Go(KindWait, func(log.Logger) error {
		return s.orchestrator.Wait(s.ctx, ro)
	})
	transport.JSONResponseWithCode(w, r, http.StatusAccepted, id)
}
