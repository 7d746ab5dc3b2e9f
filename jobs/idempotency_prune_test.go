package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/ledgercore/internal/jobs"
)

type fakePruner struct {
	retention time.Duration
	removed   int64
	err       error
}

func (f *fakePruner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	f.retention = olderThan
	return f.removed, f.err
}

func TestIdempotencyPruneJob(t *testing.T) {
	store := &fakePruner{removed: 12}
	registry := prometheus.NewRegistry()
	job := NewIdempotencyPruneJob(store, 72*time.Hour, quietLogger(), jobmetrics.NewMetrics(registry))

	require.NoError(t, job.Handle(context.Background(), NewIdempotencyPruneTask()))
	require.Equal(t, 72*time.Hour, store.retention)

	count, err := testutil.GatherAndCount(registry, "ledgercore_job_last_success_timestamp_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestIdempotencyPruneJobPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	job := NewIdempotencyPruneJob(&fakePruner{err: boom}, time.Hour, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.ErrorIs(t, job.Handle(context.Background(), NewIdempotencyPruneTask()), boom)

	var unset *IdempotencyPruneJob
	require.Error(t, unset.Handle(context.Background(), NewIdempotencyPruneTask()))
}
