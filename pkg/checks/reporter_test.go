package checks

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporterLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := &Mock{}
	clock := clockwork.NewFakeClockAt(when)
	r := NewReporter(mock, "Prepare hosts", clock)
	target := Target{Repo: "acme/web", InstallationID: 42}

	id, err := r.ReportQueued(ctx, target, "abc", "Preparing hosts", "Waiting for tarball")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	again, err := r.ReportInProgress(ctx, target, id, "abc", when, "Preparing hosts", "Preparing hosts")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	_, err = r.ReportCompleted(ctx, target, id, "abc", Success, Output{Title: "Preparing hosts", Summary: "All hosts ready"})
	require.NoError(t, err)

	reports := mock.All()
	require.Len(t, reports, 3)
	for _, rep := range reports {
		assert.Equal(t, int64(1), rep.ID)
		assert.Equal(t, "Prepare hosts", rep.Run.Name)
		assert.Equal(t, target, rep.Target)
	}
	assert.Equal(t, when, reports[2].Run.CompletedAt)
	assert.Equal(t, Success, reports[2].Run.Conclusion)
}

func TestReporterKeepsIDOnError(t *testing.T) {
	mock := &Mock{Err: errors.New("502 Bad Gateway")}
	r := NewReporter(mock, "Prepare hosts", nil)
	id, err := r.ReportInProgress(context.Background(), Target{Repo: "acme/web"}, 9, "abc", when, "t", "s")
	assert.Error(t, err)
	assert.Equal(t, int64(9), id)
}
