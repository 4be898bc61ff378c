package checks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/go-github/v28/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/sacarhq/sacar/pkg/auth"
	"github.com/sacarhq/sacar/pkg/rollout"
)

const checksPreviewAccept = "application/vnd.github.antiope-preview+json"

// GitHub talks to the checks and deployments APIs as an app
// installation.
type GitHub struct {
	tokens     *auth.Cache
	baseURL    *url.URL
	httpClient *http.Client
}

// NewGitHub expects tokens to be a cache over a GitHubAppMinter. A nil
// httpClient means http.DefaultClient.
func NewGitHub(tokens *auth.Cache, baseURL string, httpClient *http.Client) (*GitHub, error) {
	u, err := auth.ParseAPIURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &GitHub{tokens: tokens, baseURL: u, httpClient: httpClient}, nil
}

func (g *GitHub) client(ctx context.Context, installation int64) *github.Client {
	if g.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	}
	source := g.tokens.TokenSource(ctx, strconv.FormatInt(installation, 10))
	c := github.NewClient(oauth2.NewClient(ctx, source))
	c.BaseURL = g.baseURL
	return c
}

func (g *GitHub) CreateOrUpdate(ctx context.Context, target Target, id int64, run CheckRun) (int64, error) {
	owner, repo, err := rollout.SplitRepo(target.Repo)
	if err != nil {
		return id, err
	}
	method, path := "POST", fmt.Sprintf("repos/%s/%s/check-runs", owner, repo)
	if id != 0 {
		method, path = "PATCH", fmt.Sprintf("%s/%d", path, id)
	}

	// Sent by hand rather than through Checks.CreateCheckRun and
	// UpdateCheckRun, so that the body is CheckRun's own encoding.
	c := g.client(ctx, target.InstallationID)
	req, err := c.NewRequest(method, path, run)
	if err != nil {
		return id, err
	}
	req.Header.Set("Accept", checksPreviewAccept)

	var created struct {
		ID int64 `json:"id"`
	}
	if _, err := c.Do(ctx, req, &created); err != nil {
		return id, errors.Wrapf(err, "reporting %s check run for %s@%s", run.Status, target.Repo, run.HeadSHA)
	}
	if id == 0 {
		id = created.ID
	}
	return id, nil
}

func (g *GitHub) DeploymentStatus(ctx context.Context, target Target, deploymentID int64, state, description string) error {
	owner, repo, err := rollout.SplitRepo(target.Repo)
	if err != nil {
		return err
	}
	_, _, err = g.client(ctx, target.InstallationID).Repositories.CreateDeploymentStatus(ctx, owner, repo, deploymentID, &github.DeploymentStatusRequest{
		State:       github.String(state),
		Description: github.String(description),
	})
	return errors.Wrapf(err, "reporting deployment %d status %s", deploymentID, state)
}
