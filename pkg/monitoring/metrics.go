package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Access decision metrics
	accessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Total number of access policy decisions",
		},
		[]string{"access_type", "decision"},
	)

	emergencyGrantsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emergency_access_grants_total",
			Help: "Total number of break-glass grants",
		},
	)

	// Trust engine metrics
	trustRecalculationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_recalculations_total",
			Help: "Total number of trust score recomputations",
		},
		[]string{"result"},
	)

	trustScoreGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trust_score",
			Help: "Last recomputed trust score per actor",
		},
		[]string{"actor"},
	)

	// Notification metrics
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		accessDecisionsTotal,
		emergencyGrantsTotal,
		trustRecalculationsTotal,
		trustScoreGauge,
		notificationsTotal,
	)
}

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration, service string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode), service).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, service).Observe(duration.Seconds())
}

// RecordAccessDecision records a policy decision outcome
func RecordAccessDecision(accessType, decision string) {
	accessDecisionsTotal.WithLabelValues(accessType, decision).Inc()
}

// RecordEmergencyGrant counts a break-glass grant
func RecordEmergencyGrant() {
	emergencyGrantsTotal.Inc()
}

// RecordTrustRecalculation records a trust recomputation attempt
func RecordTrustRecalculation(actor string, score int, err error) {
	if err != nil {
		trustRecalculationsTotal.WithLabelValues("error").Inc()
		return
	}
	trustRecalculationsTotal.WithLabelValues("success").Inc()
	trustScoreGauge.WithLabelValues(actor).Set(float64(score))
}

// RecordNotification records a notification delivery attempt
func RecordNotification(kind string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	notificationsTotal.WithLabelValues(kind, result).Inc()
}

// Handler returns the prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
