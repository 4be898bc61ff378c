package blob

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher map[string][]byte

func (s staticFetcher) Fetch(ctx context.Context, path string, w io.Writer) error {
	_, err := w.Write(s[path])
	return err
}

func TestFetchVerified(t *testing.T) {
	content := []byte("pretend this is a tarball")
	f := staticFetcher{"a.tar": content}
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, FetchVerified(ctx, f, "a.tar", digest.FromBytes(content).String(), &buf))
	assert.Equal(t, content, buf.Bytes())

	buf.Reset()
	require.NoError(t, FetchVerified(ctx, f, "a.tar", "", &buf))
	assert.Equal(t, content, buf.Bytes())

	err := FetchVerified(ctx, f, "a.tar", digest.FromString("something else").String(), &bytes.Buffer{})
	assert.Error(t, err)

	err = FetchVerified(ctx, f, "a.tar", "md5:nope", &bytes.Buffer{})
	assert.Error(t, err)
}
