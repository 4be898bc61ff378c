package blob

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sacarhq/sacar/pkg/auth"
	"github.com/sacarhq/sacar/pkg/http/httperror"
)

func newTestGCS(t *testing.T) (*httpmock.MockTransport, *GCS) {
	mock := httpmock.NewMockTransport()
	tokens := auth.NewCache(auth.MinterFunc(func(ctx context.Context, scope string) (auth.Token, error) {
		if scope != auth.ReadOnlyStorageScope {
			t.Errorf("unexpected scope %q", scope)
		}
		return auth.Token{Value: "ya29.token", Expiry: time.Now().Add(time.Hour)}, nil
	}), nil)
	g := NewGCS("artifacts", tokens, &http.Client{Transport: mock})
	g.BaseURL = "https://storage.test"
	return mock, g
}

func TestGCSFetch(t *testing.T) {
	mock, g := newTestGCS(t)
	var escapedPath, query, authorization string
	mock.RegisterResponder("GET", `=~^https://storage\.test/storage/v1/b/artifacts/o/`,
		func(req *http.Request) (*http.Response, error) {
			escapedPath = req.URL.EscapedPath()
			query = req.URL.RawQuery
			authorization = req.Header.Get("Authorization")
			return httpmock.NewStringResponse(200, "tarball bytes"), nil
		})

	var buf bytes.Buffer
	require.NoError(t, g.Fetch(context.Background(), "acme/web/abc.tar.gz", &buf))
	assert.Equal(t, "tarball bytes", buf.String())
	assert.Equal(t, "/storage/v1/b/artifacts/o/acme%2Fweb%2Fabc.tar.gz", escapedPath)
	assert.Equal(t, "alt=media", query)
	assert.Equal(t, "Bearer ya29.token", authorization)
}

func TestGCSFetchNotFound(t *testing.T) {
	mock, g := newTestGCS(t)
	mock.RegisterResponder("GET", `=~^https://storage\.test/`, httpmock.NewStringResponder(404, "No such object"))

	err := g.Fetch(context.Background(), "missing.tar", &bytes.Buffer{})
	require.Error(t, err)
	apiErr, ok := errors.Cause(err).(*httperror.APIError)
	require.True(t, ok)
	assert.True(t, apiErr.IsMissing())
}
