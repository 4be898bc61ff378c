// Package client is how the master talks to slaves.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	sacarerr "github.com/sacarhq/sacar/pkg/errors"
	transport "github.com/sacarhq/sacar/pkg/http"
	"github.com/sacarhq/sacar/pkg/http/httperror"
	"github.com/sacarhq/sacar/pkg/job"
	"github.com/sacarhq/sacar/pkg/rollout"
	"github.com/sacarhq/sacar/pkg/store"
)

type Client struct {
	client *http.Client
	router *mux.Router
}

func New(c *http.Client) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{
		client: c,
		router: transport.NewSlaveRouter(),
	}
}

// PrepareHost asks the slave to prepare the artifact. The slave does
// the work in the background and reports through the store.
func (c *Client) PrepareHost(ctx context.Context, node store.Node, ev rollout.TarballReadyEvent) error {
	_, err := c.submit(ctx, node, transport.PrepareHost, ev)
	return err
}

func (c *Client) DeployHost(ctx context.Context, node store.Node, req rollout.DeployRequest) error {
	_, err := c.submit(ctx, node, transport.DeployHost, req)
	return err
}

func (c *Client) submit(ctx context.Context, node store.Node, route string, body interface{}) (job.ID, error) {
	var id job.ID
	err := c.methodWithResp(ctx, "PUT", node.Endpoint(), &id, route, body)
	return id, errors.Wrapf(err, "notifying %s", node.ID)
}

func (c *Client) JobStatus(ctx context.Context, node store.Node, id job.ID) (job.Status, error) {
	var res job.Status
	err := c.methodWithResp(ctx, "GET", node.Endpoint(), &res, transport.JobStatus, nil, "id", string(id))
	return res, err
}

// methodWithResp encodes body as JSON if it is not nil, and decodes
// the response into dest if there is one.
func (c *Client) methodWithResp(ctx context.Context, method, endpoint string, dest interface{}, route string, body interface{}, queryParams ...string) error {
	u, err := transport.MakeURL(endpoint, c.router, route, queryParams...)
	if err != nil {
		return errors.Wrap(err, "constructing URL")
	}

	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
	}

	req, err := http.NewRequest(method, u.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return errors.Wrapf(err, "constructing request %s", u)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.executeRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "decoding response from slave")
	}
	if len(respBytes) <= 0 || dest == nil {
		return nil
	}
	if err := json.Unmarshal(respBytes, dest); err != nil {
		return errors.Wrap(err, "decoding response from slave")
	}
	return nil
}

func (c *Client) executeRequest(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "executing HTTP request")
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusAccepted:
		return resp, nil
	default:
		defer resp.Body.Close()
		body, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "reading response body of error")
		}
		// Slaves answer with sacarerr.Error as JSON; anything else in
		// between (a proxy, a dead port) with whatever it likes.
		if strings.HasPrefix(resp.Header.Get(http.CanonicalHeaderKey("Content-Type")), "application/json") {
			var niceError sacarerr.Error
			if err := json.Unmarshal(body, &niceError); err == nil && niceError.Err != nil {
				return nil, &niceError
			}
		}
		return nil, &httperror.APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
}
