package errors

import (
	"encoding/json"
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsMissing(t *testing.T) {
	err := MissingError("rollout state", errors.New("no such key"))
	assert.True(t, IsMissing(err))
	assert.True(t, IsMissing(pkgerrors.Wrap(err, "reading state")))
	assert.False(t, IsMissing(CoverAllError(errors.New("boom"))))
	assert.False(t, IsMissing(errors.New("plain")))
}

func TestErrorJSON(t *testing.T) {
	in := InvalidPayloadError(errors.New("sha: is required"))
	bytes, err := json.Marshal(in)
	assert.NoError(t, err)

	var out Error
	assert.NoError(t, json.Unmarshal(bytes, &out))
	assert.Equal(t, User, string(out.Type))
	assert.Equal(t, in.Help, out.Help)
	assert.EqualError(t, out.Err, "sha: is required")
}
