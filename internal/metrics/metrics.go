// Package metrics collects crawl counters in a private prometheus registry.
//
// A nil *Metrics is valid and records nothing, so components can take one
// optionally without guarding every call site.
package metrics

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "librarylookup"

// Metrics holds the crawl counters.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	pagesTotal      prometheus.Counter
	itemsTotal      *prometheus.CounterVec
	coversTotal     *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests made, by kind and outcome",
		}, []string{"kind", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by kind",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retries scheduled after a retryable failure",
		}, []string{"op"}),
		pagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "List pages walked",
		}),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items extracted, by outcome",
		}, []string{"outcome"}),
		coversTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "covers_total",
			Help:      "Cover lookups, by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.retriesTotal,
		m.pagesTotal,
		m.itemsTotal,
		m.coversTotal,
	)
	return m
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(kind, outcome).Inc()
	m.requestDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// IncRetry records a scheduled retry.
func (m *Metrics) IncRetry(op string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(op).Inc()
}

// IncPage records a walked page.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.pagesTotal.Inc()
}

// IncItem records an extraction outcome ("ok", "failed", "skipped").
func (m *Metrics) IncItem(outcome string) {
	if m == nil {
		return
	}
	m.itemsTotal.WithLabelValues(outcome).Inc()
}

// IncCover records a cover result ("cached", "downloaded", "placeholder").
func (m *Metrics) IncCover(result string) {
	if m == nil {
		return
	}
	m.coversTotal.WithLabelValues(result).Inc()
}

// WriteTextfile writes all metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	slog.Info("Wrote metrics", "filename", path)
	return nil
}
