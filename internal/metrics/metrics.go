package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ReconcilePasses      prometheus.Counter
	Markers              *prometheus.GaugeVec
	SynthesisFailures    prometheus.Counter
	SelectionTransitions *prometheus.CounterVec
	Routes               *prometheus.CounterVec
	CatalogFetches       *prometheus.CounterVec
	AddressTasks         *prometheus.CounterVec
	ProviderErrors       *prometheus.CounterVec
	RequestSeconds       *prometheus.HistogramVec
	ActiveWorkers        prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ReconcilePasses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "nightspot_reconcile_passes_total",
			Help: "Total number of marker reconciliation passes.",
		}),
		Markers: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "nightspot_markers",
			Help: "Current number of live map markers by kind.",
		}, []string{"kind"}),
		SynthesisFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "nightspot_marker_synthesis_failures_total",
			Help: "Total number of places that could not be rendered as a marker.",
		}),
		SelectionTransitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nightspot_selection_transitions_total",
			Help: "Total number of selection state transitions.",
		}, []string{"from", "to"}),
		Routes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nightspot_routes_total",
			Help: "Total number of route requests by outcome.",
		}, []string{"status"}),
		CatalogFetches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nightspot_catalog_fetches_total",
			Help: "Total number of catalog loads by outcome.",
		}, []string{"status"}),
		AddressTasks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nightspot_address_tasks_processed_total",
			Help: "Total number of processed address backfill tasks.",
		}, []string{"status"}),
		ProviderErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nightspot_provider_api_errors_total",
			Help: "Total number of errors received from external provider APIs.",
		}, []string{"provider"}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nightspot_provider_request_duration_seconds",
			Help:    "Duration of requests to external provider APIs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		ActiveWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "nightspot_active_workers",
			Help: "Current number of active workers processing address tasks.",
		}),
	}
}
