package client

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sacarerr "github.com/sacarhq/sacar/pkg/errors"
	"github.com/sacarhq/sacar/pkg/http/httperror"
	"github.com/sacarhq/sacar/pkg/job"
	"github.com/sacarhq/sacar/pkg/rollout"
	"github.com/sacarhq/sacar/pkg/store"
)

func nodeFor(t *testing.T, srv *httptest.Server) store.Node {
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return store.Node{ID: "slave-1", Address: host, Port: p}
}

func TestPrepareHost(t *testing.T) {
	var got rollout.TarballReadyEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "/prepare-host", r.URL.Path)
		body, _ := ioutil.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`"job-1"`))
	}))
	defer srv.Close()

	ev := rollout.TarballReadyEvent{RepoName: "sacarhq/app", SHA: "abcdef0", Ref: "refs/heads/master", TarballPath: "builds/app.tar.gz"}
	require.NoError(t, New(srv.Client()).PrepareHost(context.Background(), nodeFor(t, srv), ev))
	assert.Equal(t, ev, got)
}

func TestDeployHost(t *testing.T) {
	var got rollout.DeployRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deploy-host", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	req := rollout.DeployRequest{RepoName: "sacarhq/app", SHA: "abcdef0", DeploymentID: 3}
	require.NoError(t, New(srv.Client()).DeployHost(context.Background(), nodeFor(t, srv), req))
	assert.Equal(t, req, got)
}

func TestJobStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs", r.URL.Path)
		assert.Equal(t, "job-1", r.URL.Query().Get("id"))
		json.NewEncoder(w).Encode(job.Status{Kind: "prepare", StatusString: job.StatusRunning})
	}))
	defer srv.Close()

	status, err := New(srv.Client()).JobStatus(context.Background(), nodeFor(t, srv), "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusRunning, status.StatusString)
}

func TestErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/prepare-host" {
			body, _ := json.Marshal(sacarerr.InvalidPayloadError(errors.New("sha is required")))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write(body)
			return
		}
		http.Error(w, "upstream gone", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := New(srv.Client())
	node := nodeFor(t, srv)

	err := c.PrepareHost(context.Background(), node, rollout.TarballReadyEvent{})
	require.Error(t, err)
	nice, ok := errors.Cause(err).(*sacarerr.Error)
	require.True(t, ok, "%T", errors.Cause(err))
	assert.Equal(t, sacarerr.Type(sacarerr.User), nice.Type)

	err = c.DeployHost(context.Background(), node, rollout.DeployRequest{})
	require.Error(t, err)
	apiErr, ok := errors.Cause(err).(*httperror.APIError)
	require.True(t, ok, "%T", errors.Cause(err))
	assert.True(t, apiErr.IsUnavailable())
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	node := nodeFor(t, srv)
	srv.Close()

	err := New(nil).PrepareHost(context.Background(), node, rollout.TarballReadyEvent{})
	assert.Error(t, err)
}
