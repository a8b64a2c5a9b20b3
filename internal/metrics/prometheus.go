// Package metrics exposes import and webhook counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all prometheus metrics. It implements etl.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	RowsProcessed    *prometheus.CounterVec
	ImportsCompleted *prometheus.CounterVec
	ImportDuration   *prometheus.HistogramVec
	ImportRows       *prometheus.HistogramVec
	WebhooksReceived *prometheus.CounterVec
}

// NewMetrics creates the metrics on a private registry so tests and
// multiple instances never collide on registration.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RowsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Rows reconciled, by source and outcome",
		}, []string{"source", "outcome"}),
		ImportsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Completed spreadsheet imports, by source",
		}, []string{"source"}),
		ImportDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Time taken to parse and reconcile one import",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		ImportRows: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_size_rows",
			Help:      "Data rows per import",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"source"}),
		WebhooksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Webhook deliveries, by source and result",
		}, []string{"source", "status"}),
	}
}

func (m *Metrics) RowProcessed(source, outcome string) {
	m.RowsProcessed.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ImportCompleted(source string, rows int, elapsed time.Duration) {
	m.ImportsCompleted.WithLabelValues(source).Inc()
	m.ImportDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	m.ImportRows.WithLabelValues(source).Observe(float64(rows))
}

func (m *Metrics) WebhookReceived(source, status string) {
	m.WebhooksReceived.WithLabelValues(source, status).Inc()
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
