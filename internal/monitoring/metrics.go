// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the pipeline stages.
const (
	OutcomeOK         = "ok"
	OutcomeFailed     = "failed"
	OutcomeEmpty      = "empty"
	OutcomeDisallowed = "disallowed"
	OutcomeMismatch   = "mismatch"
	OutcomeKept       = "kept"
	OutcomeDropped    = "dropped"
	OutcomeDuplicate  = "duplicate"
	OutcomeCreated    = "created"
	OutcomeError      = "error"
	OutcomeKnown      = "known"
)

// MetricsManager manages Prometheus metrics for a harvest process. Every
// method is safe to call on a nil receiver, which disables collection.
type MetricsManager struct {
	registry *prometheus.Registry

	pagesFetched        *prometheus.CounterVec
	addressesDiscovered prometheus.Counter
	itemFetches         *prometheus.CounterVec
	fetchDuration       prometheus.Histogram
	fetchesInFlight     prometheus.Gauge
	extractions         *prometheus.CounterVec
	cleaned             *prometheus.CounterVec
	deliveries          *prometheus.CounterVec
	runs                *prometheus.CounterVec
	runDuration         prometheus.Histogram
}

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace       string            `json:"namespace"`
	Subsystem       string            `json:"subsystem"`
	Labels          map[string]string `json:"labels"`
	EnableGoMetrics bool              `json:"enable_go_metrics"`
}

// NewMetricsManager creates a metrics manager on its own registry, so
// several managers can coexist in one process (tests, embedded runs).
func NewMetricsManager(config MetricsConfig) *MetricsManager {
	if config.Namespace == "" {
		config.Namespace = "listingharvest"
	}
	if config.Subsystem == "" {
		config.Subsystem = "pipeline"
	}

	mm := &MetricsManager{registry: prometheus.NewRegistry()}
	factory := func(c prometheus.Collector) {
		mm.registry.MustRegister(c)
	}

	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.Labels,
		}
	}

	mm.pagesFetched = prometheus.NewCounterVec(opts("listing_pages_total", "Listing pages visited by outcome"), []string{"outcome"})
	mm.addressesDiscovered = prometheus.NewCounter(opts("addresses_discovered_total", "Item addresses discovered on listing pages"))
	mm.itemFetches = prometheus.NewCounterVec(opts("item_fetches_total", "Item page fetches by outcome"), []string{"outcome"})
	mm.extractions = prometheus.NewCounterVec(opts("extractions_total", "Record extractions by outcome"), []string{"outcome"})
	mm.cleaned = prometheus.NewCounterVec(opts("cleaned_records_total", "Candidates passed through the cleaner by outcome"), []string{"outcome"})
	mm.deliveries = prometheus.NewCounterVec(opts("deliveries_total", "Sink deliveries by outcome"), []string{"outcome"})
	mm.runs = prometheus.NewCounterVec(opts("runs_total", "Pipeline runs by status"), []string{"status"})

	mm.fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "item_fetch_duration_seconds",
		Help:        "Duration of fetch+extract units in seconds",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: config.Labels,
	})
	mm.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "run_duration_seconds",
		Help:        "Duration of complete pipeline runs in seconds",
		Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		ConstLabels: config.Labels,
	})
	mm.fetchesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "fetches_in_flight",
		Help:        "Fetch+extract units currently holding a concurrency slot",
		ConstLabels: config.Labels,
	})

	for _, c := range []prometheus.Collector{
		mm.pagesFetched, mm.addressesDiscovered, mm.itemFetches, mm.fetchDuration,
		mm.fetchesInFlight, mm.extractions, mm.cleaned, mm.deliveries, mm.runs, mm.runDuration,
	} {
		factory(c)
	}

	if config.EnableGoMetrics {
		factory(collectors.NewGoCollector())
		factory(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	return mm
}

// Registry exposes the underlying registry.
func (mm *MetricsManager) Registry() *prometheus.Registry {
	if mm == nil {
		return nil
	}
	return mm.registry
}

// MetricsHandler returns the HTTP handler serving this manager's registry.
func (mm *MetricsManager) MetricsHandler() http.Handler {
	if mm == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{})
}

func (mm *MetricsManager) RecordListingPage(outcome string) {
	if mm == nil {
		return
	}
	mm.pagesFetched.WithLabelValues(outcome).Inc()
}

func (mm *MetricsManager) RecordDiscovered(n int) {
	if mm == nil || n <= 0 {
		return
	}
	mm.addressesDiscovered.Add(float64(n))
}

// RecordItemFetch records a fetch outcome and the duration of the unit.
func (mm *MetricsManager) RecordItemFetch(outcome string, d time.Duration) {
	if mm == nil {
		return
	}
	mm.itemFetches.WithLabelValues(outcome).Inc()
	mm.fetchDuration.Observe(d.Seconds())
}

func (mm *MetricsManager) RecordExtraction(outcome string) {
	if mm == nil {
		return
	}
	mm.extractions.WithLabelValues(outcome).Inc()
}

func (mm *MetricsManager) IncInFlight() {
	if mm == nil {
		return
	}
	mm.fetchesInFlight.Inc()
}

func (mm *MetricsManager) DecInFlight() {
	if mm == nil {
		return
	}
	mm.fetchesInFlight.Dec()
}

func (mm *MetricsManager) RecordCleaned(outcome string) {
	if mm == nil {
		return
	}
	mm.cleaned.WithLabelValues(outcome).Inc()
}

func (mm *MetricsManager) RecordDelivery(outcome string) {
	if mm == nil {
		return
	}
	mm.deliveries.WithLabelValues(outcome).Inc()
}

func (mm *MetricsManager) RecordRun(status string, d time.Duration) {
	if mm == nil {
		return
	}
	mm.runs.WithLabelValues(status).Inc()
	mm.runDuration.Observe(d.Seconds())
}
