package rollout

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

var tarballReadySchema = mustSchema(`{
  "type": "object",
  "required": ["repo_name", "sha", "tarball_path"],
  "properties": {
    "repo_name": {"type": "string", "pattern": "^[^/]+/[^/]+$"},
    "sha": {"type": "string", "pattern": "^[0-9a-fA-F]{7,64}$"},
    "ref": {"type": "string"},
    "branch": {"type": "string"},
    "tarball_path": {"type": "string", "minLength": 1},
    "tarball_digest": {"type": "string", "pattern": "^[a-z0-9+._-]+:[a-fA-F0-9=_-]+$"}
  },
  "anyOf": [
    {"required": ["ref"]},
    {"required": ["branch"]}
  ]
}`)

var deployRequestSchema = mustSchema(`{
  "type": "object",
  "required": ["repo_name", "sha"],
  "properties": {
    "repo_name": {"type": "string", "pattern": "^[^/]+/[^/]+$"},
    "sha": {"type": "string", "pattern": "^[0-9a-fA-F]{7,64}$"},
    "deployment_id": {"type": "integer"}
  }
}`)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(err)
	}
	return schema
}

// ValidationError lists everything wrong with a payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + strings.Join(e.Problems, "; ")
}

func validate(schema *gojsonschema.Schema, body []byte, v interface{}) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.Wrap(err, "parsing payload")
	}
	if !result.Valid() {
		verr := &ValidationError{}
		for _, e := range result.Errors() {
			verr.Problems = append(verr.Problems, e.String())
		}
		return verr
	}
	return json.Unmarshal(body, v)
}

func ParseTarballReady(body []byte) (TarballReadyEvent, error) {
	var ev TarballReadyEvent
	err := validate(tarballReadySchema, body, &ev)
	return ev, err
}

func ParseDeployRequest(body []byte) (DeployRequest, error) {
	var req DeployRequest
	err := validate(deployRequestSchema, body, &req)
	return req, err
}
