package checks

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sacarhq/sacar/pkg/auth"
)

func newTestGitHub(t *testing.T) (*httpmock.MockTransport, *GitHub) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	tokens := auth.NewCache(auth.MinterFunc(func(ctx context.Context, installation string) (auth.Token, error) {
		return auth.Token{Value: "tok-" + installation, Expiry: time.Now().Add(time.Hour)}, nil
	}), nil)
	g, err := NewGitHub(tokens, "https://api.github.test", &http.Client{Transport: mock})
	require.NoError(t, err)
	return mock, g
}

func TestGitHubCreateThenUpdate(t *testing.T) {
	mock, g := newTestGitHub(t)
	var bodies []map[string]interface{}
	record := func(status int, resp string) httpmock.Responder {
		return func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") != "Bearer tok-42" {
				return httpmock.NewStringResponse(401, `{"message":"Bad credentials"}`), nil
			}
			if req.Header.Get("Accept") != checksPreviewAccept {
				return httpmock.NewStringResponse(415, `{"message":"preview"}`), nil
			}
			body, _ := ioutil.ReadAll(req.Body)
			var m map[string]interface{}
			json.Unmarshal(body, &m)
			bodies = append(bodies, m)
			r := httpmock.NewStringResponse(status, resp)
			r.Header.Set("Content-Type", "application/json")
			return r, nil
		}
	}
	mock.RegisterResponder("POST", "https://api.github.test/repos/acme/web/check-runs", record(201, `{"id": 4711}`))
	mock.RegisterResponder("PATCH", "https://api.github.test/repos/acme/web/check-runs/4711", record(200, `{"id": 4711}`))

	target := Target{Repo: "acme/web", InstallationID: 42}
	ctx := context.Background()
	id, err := g.CreateOrUpdate(ctx, target, 0, CheckRun{Name: "Prepare hosts", HeadSHA: "abc", Status: Queued})
	require.NoError(t, err)
	assert.Equal(t, int64(4711), id)

	id, err = g.CreateOrUpdate(ctx, target, id, CheckRun{Name: "Prepare hosts", HeadSHA: "abc", Status: Completed, Conclusion: Failure, CompletedAt: when})
	require.NoError(t, err)
	assert.Equal(t, int64(4711), id)

	require.Len(t, bodies, 2)
	assert.Equal(t, "queued", bodies[0]["status"])
	assert.Equal(t, "completed", bodies[1]["status"])
	assert.Equal(t, "failure", bodies[1]["conclusion"])
	assert.Equal(t, "2019-06-01T10:30:00Z", bodies[1]["completed_at"])
}

func TestGitHubErrorKeepsID(t *testing.T) {
	mock, g := newTestGitHub(t)
	mock.RegisterResponder("PATCH", "https://api.github.test/repos/acme/web/check-runs/5",
		httpmock.NewStringResponder(500, `{"message":"oops"}`))
	id, err := g.CreateOrUpdate(context.Background(), Target{Repo: "acme/web", InstallationID: 1}, 5,
		CheckRun{Name: "n", HeadSHA: "abc", Status: Queued})
	assert.Error(t, err)
	assert.Equal(t, int64(5), id)
}

func TestGitHubDeploymentStatus(t *testing.T) {
	mock, g := newTestGitHub(t)
	var body map[string]interface{}
	mock.RegisterResponder("POST", "https://api.github.test/repos/acme/web/deployments/99/statuses",
		func(req *http.Request) (*http.Response, error) {
			json.NewDecoder(req.Body).Decode(&body)
			return httpmock.NewJsonResponse(201, map[string]interface{}{"id": 1, "state": "pending"})
		})

	err := g.DeploymentStatus(context.Background(), Target{Repo: "acme/web", InstallationID: 42}, 99, "pending", "Deploying to 3 hosts")
	require.NoError(t, err)
	assert.Equal(t, "pending", body["state"])
	assert.Equal(t, "Deploying to 3 hosts", body["description"])
}
