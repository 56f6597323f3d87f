package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	PagesTotal      prometheus.Counter
	PacksTotal      *prometheus.CounterVec
	AssetsTotal     *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "themezer_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "themezer_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "themezer_pages_scraped_total",
			Help: "Total number of listing pages that yielded packs.",
		},
	)
	packs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "themezer_packs_processed_total",
			Help: "Total number of packs processed by outcome.",
		},
		[]string{"outcome"},
	)
	assets := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "themezer_assets_total",
			Help: "Asset download attempts by kind and result.",
		},
		[]string{"kind", "result"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "themezer_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pages, packs, assets, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		PagesTotal:      pages,
		PacksTotal:      packs,
		AssetsTotal:     assets,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// IncPages increments the scraped pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncPack counts a processed pack under its outcome.
func (m *Metrics) IncPack(outcome string) {
	if m == nil {
		return
	}
	m.PacksTotal.WithLabelValues(outcome).Inc()
}

// IncAsset counts an asset download attempt.
func (m *Metrics) IncAsset(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.AssetsTotal.WithLabelValues(kind, result).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
