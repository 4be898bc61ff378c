package blob

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/sacarhq/sacar/pkg/auth"
	"github.com/sacarhq/sacar/pkg/http/httperror"
)

const DefaultGCSBaseURL = "https://storage.googleapis.com"

// GCS downloads objects through the JSON API, using a bearer token
// for the read-only storage scope.
type GCS struct {
	Bucket     string
	BaseURL    string
	Tokens     *auth.Cache
	HTTPClient *http.Client
}

func NewGCS(bucket string, tokens *auth.Cache, client *http.Client) *GCS {
	if client == nil {
		client = http.DefaultClient
	}
	return &GCS{
		Bucket:     bucket,
		BaseURL:    DefaultGCSBaseURL,
		Tokens:     tokens,
		HTTPClient: client,
	}
}

func (g *GCS) objectURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", g.BaseURL, url.PathEscape(g.Bucket), url.PathEscape(path))
}

func (g *GCS) Fetch(ctx context.Context, path string, w io.Writer) error {
	token, err := g.Tokens.Token(ctx, auth.ReadOnlyStorageScope)
	if err != nil {
		return errors.Wrap(err, "getting storage token")
	}
	req, err := http.NewRequest("GET", g.objectURL(path), nil)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "downloading gs://%s/%s", g.Bucket, path)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Wrapf(&httperror.APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}, "downloading gs://%s/%s", g.Bucket, path)
	}
	_, err = io.Copy(w, resp.Body)
	return errors.Wrapf(err, "downloading gs://%s/%s", g.Bucket, path)
}
