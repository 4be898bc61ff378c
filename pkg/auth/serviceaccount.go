package auth

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	googlejwt "golang.org/x/oauth2/jwt"
)

const (
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	// ReadOnlyStorageScope is enough to download artifacts.
	ReadOnlyStorageScope = "https://www.googleapis.com/auth/devstorage.read_only"
)

// ServiceAccountKey is the JSON key file for a GCP service account.
type ServiceAccountKey struct {
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

func LoadServiceAccountKey(path string) (ServiceAccountKey, error) {
	var key ServiceAccountKey
	bytes, err := ioutil.ReadFile(path)
	if err != nil {
		return key, errors.Wrap(err, "reading service account key")
	}
	if err := json.Unmarshal(bytes, &key); err != nil {
		return key, errors.Wrap(err, "decoding service account key")
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return key, errors.New("service account key lacks client_email or private_key")
	}
	return key, nil
}

// ServiceAccountMinter runs the JWT-bearer grant for a service account.
// The scope is an OAuth scope.
type ServiceAccountMinter struct {
	Key        ServiceAccountKey
	HTTPClient *http.Client
}

func NewServiceAccountMinter(key ServiceAccountKey, client *http.Client) *ServiceAccountMinter {
	return &ServiceAccountMinter{Key: key, HTTPClient: client}
}

func (m *ServiceAccountMinter) Mint(ctx context.Context, scope string) (Token, error) {
	tokenURL := m.Key.TokenURI
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	conf := &googlejwt.Config{
		Email:        m.Key.ClientEmail,
		PrivateKey:   []byte(m.Key.PrivateKey),
		PrivateKeyID: m.Key.PrivateKeyID,
		Scopes:       []string{scope},
		TokenURL:     tokenURL,
		Expires:      time.Hour,
	}
	if m.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.HTTPClient)
	}
	tok, err := conf.TokenSource(ctx).Token()
	if err != nil {
		return Token{}, errors.Wrapf(err, "minting token for %s", scope)
	}
	return Token{Value: tok.AccessToken, Expiry: tok.Expiry}, nil
}
