package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Metrics collects Prometheus metrics for the HTTP surface and the posting
// engine.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	allocations     *prometheus.CounterVec
	postings        *prometheus.CounterVec
	contention      *prometheus.CounterVec
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgercore_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgercore_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgercore_sequence_allocations_total",
		Help: "Document number allocations by document type and outcome.",
	}, []string{"document_type", "outcome"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgercore_postings_total",
		Help: "Journal and document postings by document type and outcome.",
	}, []string{"document_type", "outcome"})
	contention := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgercore_lock_contention_total",
		Help: "Operations that gave up waiting for a row lock.",
	}, []string{"operation"})
	registry.MustRegister(requests, duration, allocations, postings, contention)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		allocations:     allocations,
		postings:        postings,
		contention:      contention,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveAllocation implements sequence.AllocationObserver.
func (m *Metrics) ObserveAllocation(documentType string, err error) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(documentType, outcome(err)).Inc()
	m.observeContention("allocate", err)
}

// ObservePosting implements ledger.PostingMetrics.
func (m *Metrics) ObservePosting(documentType string, err error) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(documentType, outcome(err)).Inc()
	m.observeContention("post", err)
}

// Registerer exposes the registry for job collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func (m *Metrics) observeContention(operation string, err error) {
	if errors.Is(err, shared.ErrContention) {
		m.contention.WithLabelValues(operation).Inc()
	}
}

// outcome folds an error into a small fixed label set.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shared.ErrContention):
		return "contention"
	case errors.Is(err, shared.ErrUnbalanced), errors.Is(err, shared.ErrInvalidLine):
		return "rejected"
	case errors.Is(err, shared.ErrScopeNotFound), errors.Is(err, shared.ErrScopeInactive):
		return "scope"
	default:
		return "error"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
