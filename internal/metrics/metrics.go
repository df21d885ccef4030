// Package metrics provides Prometheus instrumentation for the fraud monitor.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudmonitor",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraudmonitor",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// CyclesTotal counts completed monitoring cycles by result.
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudmonitor",
			Name:      "cycles_total",
			Help:      "Total monitoring cycles by result (ok, error).",
		},
		[]string{"result"},
	)

	// AccountsScannedTotal counts accounts evaluated across all cycles.
	AccountsScannedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudmonitor",
		Name:      "accounts_scanned_total",
		Help:      "Total account evaluations performed.",
	})

	// AlertsTotal counts emitted fraud alerts by risk level.
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudmonitor",
			Name:      "alerts_total",
			Help:      "Total fraud alerts emitted by risk level.",
		},
		[]string{"level"},
	)

	// AIRequestsTotal counts Gemini analysis attempts by result.
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudmonitor",
			Name:      "ai_requests_total",
			Help:      "Total AI analysis requests by result (ok, error, parse_error).",
		},
		[]string{"result"},
	)

	// RuleFallbacksTotal counts evaluations that fell through to the rule path.
	RuleFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudmonitor",
		Name:      "rule_fallbacks_total",
		Help:      "Total evaluations scored by the deterministic rule path.",
	})

	// BankAPIErrorsTotal counts failed downstream bank API calls by service.
	BankAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudmonitor",
			Name:      "bank_api_errors_total",
			Help:      "Total failed downstream calls by service (balance, history, userservice).",
		},
		[]string{"service"},
	)

	// EvaluationDuration observes time spent scoring one account.
	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudmonitor",
		Name:      "evaluation_duration_seconds",
		Help:      "Time to produce a verdict for one account, including the AI call.",
		Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30},
	})

	// ActiveStreamClients tracks connected alert-stream WebSocket clients.
	ActiveStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudmonitor",
		Name:      "active_stream_clients",
		Help:      "Number of currently connected alert stream clients.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CyclesTotal,
		AccountsScannedTotal,
		AlertsTotal,
		AIRequestsTotal,
		RuleFallbacksTotal,
		BankAPIErrorsTotal,
		EvaluationDuration,
		ActiveStreamClients,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
