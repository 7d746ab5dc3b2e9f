// Package jobmetrics instruments background jobs run by the worker.
package jobmetrics

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// Metrics holds the job collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	findings    *prometheus.CounterVec
	now         func() time.Time
}

var (
	sharedOnce sync.Once
	shared     *Metrics
)

// NewMetrics registers the collectors on registerer. A nil registerer returns
// a process wide instance registered once on the default registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	sharedOnce.Do(func() {
		shared = register(prometheus.DefaultRegisterer)
	})
	return shared
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgercore_jobs_total",
			Help: "Job runs by job name and outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgercore_job_duration_seconds",
			Help:    "Job run duration.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledgercore_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}, []string{"job"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgercore_integrity_findings_total",
			Help: "Ledger integrity findings by kind and company.",
		}, []string{"kind", "company"}),
		now: time.Now,
	}
	registerer.MustRegister(m.runs, m.duration, m.lastSuccess, m.findings)
	return m
}

// Run measures a single job execution.
type Run struct {
	metrics *Metrics
	job     string
	started time.Time
}

// Start begins measuring a run of job.
func (m *Metrics) Start(job string) Run {
	if m == nil {
		return Run{job: job}
	}
	return Run{metrics: m, job: job, started: m.now()}
}

// Finish records the outcome of the run and returns err unchanged.
func (r Run) Finish(err error) error {
	m := r.metrics
	if m == nil {
		return err
	}
	finished := m.now()
	m.duration.WithLabelValues(r.job).Observe(finished.Sub(r.started).Seconds())
	m.runs.WithLabelValues(r.job, outcome(err)).Inc()
	if err == nil {
		m.lastSuccess.WithLabelValues(r.job).Set(float64(finished.Unix()))
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeFailed
	}
}

// AddFindings counts integrity findings of one kind for a company. Findings
// without a company are reported under "0".
func (m *Metrics) AddFindings(kind string, companyID int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	if companyID < 0 {
		companyID = 0
	}
	m.findings.WithLabelValues(kind, strconv.FormatInt(companyID, 10)).Add(float64(count))
}
