package http

import (
	"errors"

	sacarerr "github.com/sacarhq/sacar/pkg/errors"
)

var ErrorUnauthorized = &sacarerr.Error{
	Type: sacarerr.User,
	Help: `The request failed authentication

Webhook deliveries must carry an X-Hub-Signature header computed
with the secret sacar was configured with (--github-webhook-secret).
Check that the secret in the GitHub app settings matches.
`,
	Err: errors.New("request failed authentication"),
}

func MakeAPINotFound(path string) *sacarerr.Error {
	return &sacarerr.Error{
		Type: sacarerr.Missing,
		Help: `The API endpoint requested is not served here.

Masters serve /github-webhook and /tarball-ready; slaves serve
/prepare-host and /deploy-host. Check the role the process was started
with, and the path:

    ` + path + `
`,
		Err: errors.New("API endpoint not found"),
	}
}
