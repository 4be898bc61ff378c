// Package slave serves the API the master uses to have this host
// prepare and deploy versions.
package slave

import (
	"context"
	"io/ioutil"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	sacarerr "github.com/sacarhq/sacar/pkg/errors"
	transport "github.com/sacarhq/sacar/pkg/http"
	"github.com/sacarhq/sacar/pkg/job"
	"github.com/sacarhq/sacar/pkg/rollout"
)

const (
	KindPrepare = "prepare"
	KindDeploy  = "deploy"
)

// Preparer does the work on this host; preparer.Preparer is one.
type Preparer interface {
	Prepare(ctx context.Context, ev rollout.TarballReadyEvent) (rollout.Result, error)
	Deploy(ctx context.Context, req rollout.DeployRequest) rollout.Result
}

// Jobs runs work in the background; job.Worker is one.
type Jobs interface {
	transport.JobStatuser
	Submit(kind string, fn job.JobFunc) job.ID
}

func NewRouter() *mux.Router {
	r := transport.NewSlaveRouter()
	transport.NotFound(r)
	return r
}

// NewHandler attaches the slave's handlers to r. Background work runs
// in ctx, so cancelling it abandons anything in flight.
func NewHandler(ctx context.Context, p Preparer, jobs Jobs, r *mux.Router) http.Handler {
	handle := HTTPServer{ctx: ctx, preparer: p, jobs: jobs}

	transport.HandleCommon(r, jobs)
	r.Get(transport.PrepareHost).HandlerFunc(handle.PrepareHost)
	r.Get(transport.DeployHost).HandlerFunc(handle.DeployHost)

	return transport.Instrument(r)
}

type HTTPServer struct {
	ctx      context.Context
	preparer Preparer
	jobs     Jobs
}

func (s HTTPServer) PrepareHost(w http.ResponseWriter, r *http.Request) {
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

	id := s.jobs.Submit(KindPrepare, func(logger log.Logger) error {
		res, err := s.preparer.Prepare(s.ctx, ev)
		if err != nil {
			return errors.Wrap(err, "reporting slave status")
		}
		if !res.Success {
			return errors.New(res.Message)
		}
		return nil
	})
	transport.JSONResponseWithCode(w, r, http.StatusAccepted, id)
}

func (s HTTPServer) DeployHost(w http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		transport.WriteError(w, r, http.StatusBadRequest, err)
		return
	}
	req, err := rollout.ParseDeployRequest(body)
	if err != nil {
		transport.ErrorResponse(w, r, sacarerr.InvalidPayloadError(err))
		return
	}

	id := s.jobs.Submit(KindDeploy, func(logger log.Logger) error {
		if res := s.preparer.Deploy(s.ctx, req); !res.Success {
			return errors.New(res.Message)
		}
		return nil
	})
	transport.JSONResponseWithCode(w, r, http.StatusAccepted, id)
}
