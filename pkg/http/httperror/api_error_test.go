package httperror

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 503, Status: "503 Service Unavailable", Body: "draining"}
	assert.EqualError(t, err, "503 Service Unavailable (draining)")
	assert.True(t, err.IsUnavailable())
	assert.False(t, err.IsMissing())

	err = &APIError{StatusCode: 404, Status: "404 Not Found"}
	assert.EqualError(t, err, "404 Not Found")
	assert.True(t, err.IsMissing())
	assert.False(t, err.IsUnavailable())
}
