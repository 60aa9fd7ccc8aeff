package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Client core metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aula_api_requests_total",
			Help: "Total number of backend requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aula_api_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	TokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aula_token_refresh_total",
			Help: "Access token refresh attempts by result",
		},
		[]string{"result"},
	)

	RefreshWaitersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aula_refresh_waiters_total",
			Help: "Requests queued behind an in-flight token refresh",
		},
	)

	RequestReplaysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aula_request_replays_total",
			Help: "Requests replayed after an authentication failure",
		},
	)

	SessionTerminationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aula_session_terminations_total",
			Help: "Session terminations by reason",
		},
		[]string{"reason"},
	)

	// Realtime metrics
	RealtimeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aula_realtime_events_total",
			Help: "Realtime events received by event name",
		},
		[]string{"event"},
	)

	RealtimeConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aula_realtime_connected",
			Help: "Whether the realtime channel is connected (1) or not (0)",
		},
	)

	NotificationsUnread = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aula_notifications_unread",
			Help: "Current unread notification count",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(TokenRefreshTotal)
	prometheus.MustRegister(RefreshWaitersTotal)
	prometheus.MustRegister(RequestReplaysTotal)
	prometheus.MustRegister(SessionTerminationsTotal)
	prometheus.MustRegister(RealtimeEventsTotal)
	prometheus.MustRegister(RealtimeConnected)
	prometheus.MustRegister(NotificationsUnread)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
