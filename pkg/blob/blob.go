// Package blob downloads build artifacts from object storage.
package blob

import (
	"context"
	"io"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

type Fetcher interface {
	// Fetch streams the object at path into w.
	Fetch(ctx context.Context, path string, w io.Writer) error
}

// VerifyingWriter passes writes through while hashing them, so the
// download can be checked once complete.
type VerifyingWriter struct {
	io.Writer
	expected digest.Digest
	verifier digest.Verifier
}

func NewVerifyingWriter(w io.Writer, expected string) (*VerifyingWriter, error) {
	d, err := digest.Parse(expected)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing digest %q", expected)
	}
	verifier := d.Verifier()
	return &VerifyingWriter{
		Writer:   io.MultiWriter(w, verifier),
		expected: d,
		verifier: verifier,
	}, nil
}

func (v *VerifyingWriter) Verify() error {
	if !v.verifier.Verified() {
		return errors.Errorf("downloaded content does not match %s", v.expected)
	}
	return nil
}

// FetchVerified fetches path into w, and if expectedDigest is not
// empty, checks the content against it.
func FetchVerified(ctx context.Context, f Fetcher, path, expectedDigest string, w io.Writer) error {
	if expectedDigest == "" {
		return f.Fetch(ctx, path, w)
	}
	vw, err := NewVerifyingWriter(w, expectedDigest)
	if err != nil {
		return err
	}
	if err := f.Fetch(ctx, path, vw); err != nil {
		return err
	}
	return vw.Verify()
}
