// Package httperror describes failed responses from the HTTP services
// sacar calls: slaves, and blob storage.
package httperror

import (
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response whose body was not a sacar error. It
// is the cause (errors.Cause) of the error returned by the caller.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (err *APIError) Error() string {
	body := strings.TrimSpace(err.Body)
	if body == "" {
		return err.Status
	}
	return fmt.Sprintf("%s (%s)", err.Status, body)
}

// IsUnavailable is true when the service, or something in front of it,
// could not handle the request at all; it may be worth asking again.
func (err *APIError) IsUnavailable() bool {
	return err.StatusCode == http.StatusBadGateway ||
		err.StatusCode == http.StatusServiceUnavailable ||
		err.StatusCode == http.StatusGatewayTimeout
}

func (err *APIError) IsMissing() bool {
	return err.StatusCode == http.StatusNotFound
}
