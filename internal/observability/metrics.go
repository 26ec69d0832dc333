package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "issue_geocoder"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// geocoder and the enrichment pipeline.
type Metrics struct {
	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: transport={primary,fallback}, outcome={success,error,throttled}
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,negative_hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: transport={primary,fallback}
	RateLimitWait      prometheus.Histogram
	GeocodeThrottled   prometheus.Counter
	GeocodeResolutions *prometheus.CounterVec // labels: outcome={resolved,unresolved,cancelled}
	CacheEntries       prometheus.Gauge

	// Pipeline metrics.
	MessagesConsumed        prometheus.Counter
	MessagesProduced        prometheus.Counter
	EnrichErrors            prometheus.Counter
	EnrichOutcomes          *prometheus.CounterVec
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Upstream reverse-geocoding requests by transport and outcome.",
		}, []string{"transport", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Upstream request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"transport"}),
		RateLimitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_rate_limit_wait_seconds",
			Help:      "Time spent waiting at the provider rate gate.",
			Buckets:   []float64{0, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		GeocodeThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_throttled_total",
			Help:      "Resolutions that hit a 429/403 and applied the cooldown.",
		}),
		GeocodeResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_resolutions_total",
			Help:      "Resolve calls that reached the provider, by outcome.",
		}, []string{"outcome"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_cache_entries",
			Help:      "Entries currently held in the place cache.",
		}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total issue reports read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total enriched issue reports written to the sink topic.",
		}),
		EnrichErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrich_errors_total",
			Help:      "Total issue reports that could not be enriched.",
		}),
		EnrichOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrich_outcomes_total",
			Help:      "Enriched issue reports by geo_source (resolved, unresolved, invalid, none).",
		}, []string{"geo_source"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the enrichment pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-enrich-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.RateLimitWait,
		m.GeocodeThrottled,
		m.GeocodeResolutions,
		m.CacheEntries,
		m.MessagesConsumed,
		m.MessagesProduced,
		m.EnrichErrors,
		m.EnrichOutcomes,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
	}
}
