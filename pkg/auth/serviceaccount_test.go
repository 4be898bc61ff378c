package auth

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceAccountMinter(t *testing.T) {
	_, pemBytes := newTestKey(t)
	keyFile, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"client_email":   "sacar@project.iam.gserviceaccount.com",
		"client_id":      "1234567890",
		"private_key":    string(pemBytes),
		"private_key_id": "abcdef",
		"token_uri":      "https://oauth2.example.com/token",
	})
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "gcp.json")
	require.NoError(t, ioutil.WriteFile(keyPath, keyFile, 0600))

	key, err := LoadServiceAccountKey(keyPath)
	require.NoError(t, err)
	assert.Equal(t, "sacar@project.iam.gserviceaccount.com", key.ClientEmail)

	mock := httpmock.NewMockTransport()
	var grantType, assertion string
	mock.RegisterResponder("POST", "https://oauth2.example.com/token",
		func(req *http.Request) (*http.Response, error) {
			req.ParseForm()
			grantType = req.PostForm.Get("grant_type")
			assertion = req.PostForm.Get("assertion")
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"access_token": "ya29.token",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		})

	before := time.Now()
	tok, err := NewServiceAccountMinter(key, &http.Client{Transport: mock}).Mint(context.Background(), ReadOnlyStorageScope)
	require.NoError(t, err)
	assert.Equal(t, "ya29.token", tok.Value)
	assert.True(t, tok.Expiry.After(before.Add(59*time.Minute)))
	assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", grantType)
	assert.NotEmpty(t, assertion)
}

func TestLoadServiceAccountKeyIncomplete(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "gcp.json")
	require.NoError(t, ioutil.WriteFile(keyPath, []byte(`{"client_email":"x@y"}`), 0600))
	_, err := LoadServiceAccountKey(keyPath)
	assert.Error(t, err)
}
