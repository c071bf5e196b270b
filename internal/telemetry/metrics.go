// Package telemetry exposes dashboard counters in Prometheus format
package telemetry

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exoai"

// Metrics holds the dashboard collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	uploadsTotal       *prometheus.CounterVec
	remoteCallsTotal   *prometheus.CounterVec
	remoteCallDuration *prometheus.HistogramVec
	exportsTotal       *prometheus.CounterVec
	pageViewsTotal     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a fresh registry
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initMetrics()
	if err := m.registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of CSV submissions by model and outcome",
		},
		[]string{"model", "outcome"}, // outcome: success, validation_error, request_error, store_error
	)

	m.remoteCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Total number of calls to the classification service",
		},
		[]string{"call", "status_code"}, // status_code is 0 when no response arrived
	)

	m.remoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Time taken by calls to the classification service",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"call"},
	)

	m.exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Total number of analysis downloads by format",
		},
		[]string{"format"},
	)

	m.pageViewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_views_total",
			Help:      "Total number of rendered dashboard pages",
		},
		[]string{"page"},
	)
}

func (m *Metrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.uploadsTotal,
		m.remoteCallsTotal,
		m.remoteCallDuration,
		m.exportsTotal,
		m.pageViewsTotal,
	}
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// ObserveUpload records one submit outcome
func (m *Metrics) ObserveUpload(model, outcome string) {
	m.uploadsTotal.WithLabelValues(model, outcome).Inc()
}

// ObserveRemoteCall records one call to the classification service
func (m *Metrics) ObserveRemoteCall(call string, status int, err error, elapsed time.Duration) {
	m.remoteCallsTotal.WithLabelValues(call, strconv.Itoa(status)).Inc()
	m.remoteCallDuration.WithLabelValues(call).Observe(elapsed.Seconds())
}

// ObserveExport records one download
func (m *Metrics) ObserveExport(format string) {
	m.exportsTotal.WithLabelValues(format).Inc()
}

// ObservePage records one rendered page
func (m *Metrics) ObservePage(page string) {
	m.pageViewsTotal.WithLabelValues(page).Inc()
}

// Registry returns the registry backing Handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
