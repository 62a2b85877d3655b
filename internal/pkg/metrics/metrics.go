// internal/pkg/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inventory"

// Metrics holds the service's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Posting metrics
	PostingsTotal      *prometheus.CounterVec
	PostingDuration    *prometheus.HistogramVec
	PostingRetries     *prometheus.CounterVec
	LedgerTransactions *prometheus.CounterVec
	NegativeBalances   prometheus.Counter
}

// New creates a Metrics instance on its own registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	m.PostingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postings_total",
			Help:      "Document postings by kind, operation and outcome",
		},
		[]string{"kind", "operation", "outcome"},
	)

	m.PostingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "posting_duration_seconds",
			Help:      "Time spent posting a document, including retries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "operation"},
	)

	m.PostingRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posting_retries_total",
			Help:      "Posting attempts retried after a concurrency conflict",
		},
		[]string{"operation"},
	)

	m.LedgerTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_transactions_total",
			Help:      "Inventory transactions appended to the ledger",
		},
		[]string{"txn_type"},
	)

	m.NegativeBalances = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negative_balance_warnings_total",
			Help:      "Postings that left a balance below zero",
		},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PostingsTotal,
		m.PostingDuration,
		m.PostingRetries,
		m.LedgerTransactions,
		m.NegativeBalances,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPosting records one posting call, outcome is "success" or an error kind
func (m *Metrics) RecordPosting(kind, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.PostingsTotal.WithLabelValues(kind, operation, outcome).Inc()
	m.PostingDuration.WithLabelValues(kind, operation).Observe(duration.Seconds())
}

// RecordRetry records a retried posting attempt
func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.PostingRetries.WithLabelValues(operation).Inc()
}

// RecordTransactions records appended ledger rows
func (m *Metrics) RecordTransactions(txnType string, count int) {
	if m == nil {
		return
	}
	m.LedgerTransactions.WithLabelValues(txnType).Add(float64(count))
}

// RecordNegativeBalance records an oversell warning
func (m *Metrics) RecordNegativeBalance() {
	if m == nil {
		return
	}
	m.NegativeBalances.Inc()
}
