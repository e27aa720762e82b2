// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RealtimeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outliers_realtime_events_total",
			Help: "Realtime change events applied to chat state.",
		},
		[]string{"table", "type"},
	)

	DroppedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outliers_realtime_events_dropped_total",
			Help: "Realtime change events ignored by chat state.",
		},
		[]string{"reason"},
	)

	RemoteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outliers_remote_failures_total",
			Help: "Failed calls to the data service, by operation.",
		},
		[]string{"op"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "outliers_active_sessions",
			Help: "Logged-in viewers with a live chat session.",
		},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outliers_http_requests_total",
			Help: "HTTP requests by route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outliers_http_rate_limited_total",
			Help: "Requests rejected by the per-viewer rate limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(RealtimeEvents)
	prometheus.MustRegister(DroppedEvents)
	prometheus.MustRegister(RemoteFailures)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(RateLimited)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
