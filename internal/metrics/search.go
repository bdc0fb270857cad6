package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and chat Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_requests_total",
			Help:      "Boundary searches by mode and outcome code",
		},
		[]string{"mode", "outcome"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_duration_seconds",
			Help:      "Boundary search duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	LeakageIncidentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "topic_leakage_incidents_total",
			Help:      "Searches that returned a row outside the requested subtree",
		},
	)

	SearchLogFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_log_failures_total",
			Help:      "Search log records dropped or failed to write",
		},
	)

	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chat_requests_total",
			Help:      "Chat completions by model and status",
		},
		[]string{"model", "status"},
	)

	ChatTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chat_tokens_total",
			Help:      "Chat tokens consumed",
		},
		[]string{"model", "type"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search and chat metrics. Must be called once from main.
func RegisterSearchMetrics() {
	registerOnce(&searchMetricsRegistered,
		SearchRequestsTotal,
		SearchDuration,
		LeakageIncidentsTotal,
		SearchLogFailuresTotal,
		ChatRequestsTotal,
		ChatTokensTotal,
	)
}
