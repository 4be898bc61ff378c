package http

import (
	"net/http"

	"github.com/gorilla/mux"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weaveworks/common/middleware"

	sacarerr "github.com/sacarhq/sacar/pkg/errors"
	"github.com/sacarhq/sacar/pkg/job"
	sacarmetrics "github.com/sacarhq/sacar/pkg/metrics"
)

var requestDuration = stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
	Namespace: "sacar",
	Name:      "request_duration_seconds",
	Help:      "Time (in seconds) spent serving HTTP requests.",
	Buckets:   stdprometheus.DefBuckets,
}, []string{sacarmetrics.LabelMethod, sacarmetrics.LabelRoute, "status_code", "ws"})

func init() {
	stdprometheus.MustRegister(requestDuration)
}

// JobStatuser is what the job status endpoint needs; job.Worker
// does it.
type JobStatuser interface {
	Status(id job.ID) (job.Status, bool)
}

// HandleCommon attaches the handlers both roles serve.
func HandleCommon(r *mux.Router, jobs JobStatuser) {
	r.Get(Status).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		JSONResponse(w, r, map[string]string{"status": "ok"})
	})
	r.Get(JobStatus).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := job.ID(mux.Vars(r)["id"])
		status, ok := jobs.Status(id)
		if !ok {
			ErrorResponse(w, r, sacarerr.MissingError("job "+string(id), job.ErrNoSuchJob))
			return
		}
		JSONResponse(w, r, status)
	})
	r.Get(Metrics).Handler(promhttp.Handler())
}

// Instrument records the duration of every request, by route.
func Instrument(r *mux.Router) http.Handler {
	return middleware.Instrument{
		RouteMatcher: r,
		Duration:     requestDuration,
	}.Wrap(r)
}
