package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "deskindex"

// AI service and outbound HTTP metrics.
var (
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Total number of AI service requests",
		},
		[]string{"op", "status"},
	)

	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "AI service request duration in seconds, retries included",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"op"},
	)

	HTTPRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_retries_total",
			Help:      "Outbound HTTP retries by host and triggering status (0 for transport errors)",
		},
		[]string{"host", "status"},
	)
)

// Search, indexing and classification metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Semantic search calls by outcome (ok, skipped, error)",
		},
		[]string{"result"},
	)

	IndexedDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_documents_total",
			Help:      "Documents written to or removed from the index",
		},
		[]string{"type", "op", "status"},
	)

	RebuildRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rebuild_running",
			Help:      "1 while a full index rebuild worker is running",
		},
	)

	RebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebuilds_total",
			Help:      "Finished index rebuilds by result",
		},
		[]string{"result"},
	)

	AutotagTicketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autotag_tickets_total",
			Help:      "Tickets processed by the autotagger (tagged, skipped, error)",
		},
		[]string{"result"},
	)
)

var serviceMetricsRegistered bool

// RegisterServiceMetrics registers the service metrics. Must be called once from main.
func RegisterServiceMetrics() {
	if serviceMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		AIRequestsTotal,
		AIRequestDuration,
		HTTPRetriesTotal,
		SearchRequestsTotal,
		IndexedDocumentsTotal,
		RebuildRunning,
		RebuildsTotal,
		AutotagTicketsTotal,
	)
	serviceMetricsRegistered = true
}
