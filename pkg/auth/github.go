package auth

import (
	"context"
	"crypto/rsa"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/go-github/v28/github"
	"github.com/pkg/errors"
)

const (
	DefaultGitHubAPIURL = "https://api.github.com/"

	appTokenLifetime = 5 * time.Minute
	machineManAccept = "application/vnd.github.machine-man-preview+json"
)

// GitHubAppMinter exchanges a signed app JWT for an installation
// access token. The scope is the installation id.
type GitHubAppMinter struct {
	AppID      int64
	Key        *rsa.PrivateKey
	BaseURL    *url.URL
	HTTPClient *http.Client
	Now        func() time.Time
}

func LoadGitHubAppKey(path string) (*rsa.PrivateKey, error) {
	pem, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading GitHub app key")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	return key, errors.Wrap(err, "parsing GitHub app key")
}

func NewGitHubAppMinter(appID int64, key *rsa.PrivateKey, baseURL string, client *http.Client) (*GitHubAppMinter, error) {
	u, err := ParseAPIURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &GitHubAppMinter{
		AppID:      appID,
		Key:        key,
		BaseURL:    u,
		HTTPClient: client,
		Now:        time.Now,
	}, nil
}

// ParseAPIURL parses a GitHub API base URL, which go-github insists
// ends with a slash.
func ParseAPIURL(s string) (*url.URL, error) {
	if s == "" {
		s = DefaultGitHubAPIURL
	}
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	u, err := url.Parse(s)
	return u, errors.Wrapf(err, "parsing GitHub API URL %q", s)
}

func (m *GitHubAppMinter) appJWT() (string, error) {
	now := m.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(m.AppID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(appTokenLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.Key)
}

func (m *GitHubAppMinter) Mint(ctx context.Context, installation string) (Token, error) {
	signed, err := m.appJWT()
	if err != nil {
		return Token{}, errors.Wrap(err, "signing app JWT")
	}

	client := github.NewClient(m.HTTPClient)
	client.BaseURL = m.BaseURL
	req, err := client.NewRequest("POST", "app/installations/"+installation+"/access_tokens", nil)
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	req.Header.Set("Accept", machineManAccept)

	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if _, err := client.Do(ctx, req, &resp); err != nil {
		return Token{}, errors.Wrapf(err, "minting token for installation %s", installation)
	}
	return Token{Value: resp.Token, Expiry: resp.ExpiresAt}, nil
}
