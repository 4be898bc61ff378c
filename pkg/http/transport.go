package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	sacarerr "github.com/sacarhq/sacar/pkg/errors"
)

func commonRoutes(r *mux.Router) {
	r.NewRoute().Name(Status).Methods("GET").Path("/status")
	r.NewRoute().Name(JobStatus).Methods("GET").Path("/jobs").Queries("id", "{id}")
	r.NewRoute().Name(Metrics).Methods("GET").Path("/metrics")
}

func NewMasterRouter() *mux.Router {
	r := mux.NewRouter()
	commonRoutes(r)
	r.NewRoute().Name(GitHubWebhook).Methods("POST").Path("/github-webhook")
	r.NewRoute().Name(TarballReady).Methods("POST").Path("/tarball-ready")
	return r
}

func NewSlaveRouter() *mux.Router {
	r := mux.NewRouter()
	commonRoutes(r)
	r.NewRoute().Name(PrepareHost).Methods("PUT").Path("/prepare-host")
	r.NewRoute().Name(DeployHost).Methods("PUT").Path("/deploy-host")
	return r
}

// NotFound adds a catch-all route, so every request not matching one
// of the routes before it gets a helpful 404. It must be added last.
func NotFound(r *mux.Router) {
	r.NewRoute().Name("NotFound").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, MakeAPINotFound(r.URL.Path))
	})
}

func MakeURL(endpoint string, router *mux.Router, routeName string, urlParams ...string) (*url.URL, error) {
	if len(urlParams)%2 != 0 {
		panic("urlParams must be even!")
	}

	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing endpoint %s", endpoint)
	}
	route := router.Get(routeName)
	if route == nil {
		return nil, errors.New("no route with name " + routeName)
	}
	routeURL, err := route.URLPath()
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route path %s", routeName)
	}

	v := url.Values{}
	for i := 0; i < len(urlParams); i += 2 {
		v.Add(urlParams[i], urlParams[i+1])
	}

	endpointURL.Path = path.Join(endpointURL.Path, routeURL.Path)
	endpointURL.RawQuery = v.Encode()
	return endpointURL, nil
}

func WriteError(w http.ResponseWriter, r *http.Request, code int, err error) {
	// Clients that can decode JSON errors say so with an Accept
	// header; everyone else (curl, GitHub's delivery log) gets text.
	if len(r.Header.Get("Accept")) > 0 {
		switch negotiateContentType(r, []string{"application/json", "text/plain"}) {
		case "application/json":
			body, encodeErr := json.Marshal(err)
			if encodeErr != nil {
				w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, "Error encoding error response: %s\n\nOriginal error: %s", encodeErr.Error(), err.Error())
				return
			}
			w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "application/json; charset=utf-8")
			w.WriteHeader(code)
			w.Write(body)
			return
		case "text/plain":
			w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
			w.WriteHeader(code)
			switch err := err.(type) {
			case *sacarerr.Error:
				fmt.Fprint(w, err.Help)
			default:
				fmt.Fprint(w, err.Error())
			}
			return
		}
	}
	w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprint(w, err.Error())
}

func JSONResponse(w http.ResponseWriter, r *http.Request, result interface{}) {
	JSONResponseWithCode(w, r, http.StatusOK, result)
}

func JSONResponseWithCode(w http.ResponseWriter, r *http.Request, code int, result interface{}) {
	body, err := json.Marshal(result)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(body)
}

func ErrorResponse(w http.ResponseWriter, r *http.Request, apiError error) {
	var outErr *sacarerr.Error
	var code int
	var ok bool

	err := errors.Cause(apiError)
	if outErr, ok = err.(*sacarerr.Error); !ok {
		outErr = sacarerr.CoverAllError(apiError)
	}
	switch outErr.Type {
	case sacarerr.Missing:
		code = http.StatusNotFound
	case sacarerr.User:
		code = http.StatusUnprocessableEntity
	case sacarerr.Server:
		code = http.StatusInternalServerError
	default:
		code = http.StatusInternalServerError
	}
	WriteError(w, r, code, outErr)
}
