package jobmetrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRunRecordsOutcome(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	clock := time.Unix(1_700_000_000, 0)
	metrics.now = func() time.Time { return clock }

	require.NoError(t, metrics.Start("ledger:integrity").Finish(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Start("ledger:integrity").Finish(boom), boom)
	canceled := fmt.Errorf("audit: %w", context.Canceled)
	require.ErrorIs(t, metrics.Start("ledger:integrity").Finish(canceled), context.Canceled)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("ledger:integrity", OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("ledger:integrity", OutcomeFailed)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("ledger:integrity", OutcomeCanceled)))
	require.Equal(t, float64(clock.Unix()), testutil.ToFloat64(metrics.lastSuccess.WithLabelValues("ledger:integrity")))
}

func TestAddFindings(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.AddFindings("unbalanced_entry", 7, 2)
	metrics.AddFindings("unbalanced_entry", 7, 0)
	metrics.AddFindings("missing_number", 0, 1)

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.findings.WithLabelValues("unbalanced_entry", "7")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.findings.WithLabelValues("missing_number", "0")))
}

func TestNilMetricsPassErrorThrough(t *testing.T) {
	var metrics *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Start("x").Finish(boom), boom)
	metrics.AddFindings("x", 1, 1)
}
