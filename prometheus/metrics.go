package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// TenantResolutionCounter counts tenant resolutions by winning source
	TenantResolutionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolutions_total",
			Help: "Total number of tenant resolutions by source (header, token, home, default)",
		},
		[]string{"source"},
	)

	// TenantResolutionFailureCounter counts requests where no tenant could be resolved
	TenantResolutionFailureCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_resolution_failures_total",
			Help: "Total number of requests with no resolvable tenant",
		},
	)

	// SyncCounter counts cross-partition sync attempts by entity and outcome
	SyncCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entity_sync_total",
			Help: "Total number of cross-partition entity syncs by entity and outcome",
		},
		[]string{"entity", "outcome"},
	)

	// SyncRetryCounter counts deferred sync retries by entity
	SyncRetryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entity_sync_retries_total",
			Help: "Total number of deferred sync retries by entity",
		},
		[]string{"entity"},
	)

	// ProvisionRunCounter counts provisioning saga runs by outcome
	ProvisionRunCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provision_runs_total",
			Help: "Total number of tenant provisioning runs by outcome",
		},
		[]string{"outcome"},
	)

	// ProvisionStepFailureCounter counts saga failures by step
	ProvisionStepFailureCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provision_step_failures_total",
			Help: "Total number of provisioning step failures by step",
		},
		[]string{"step"},
	)

	// ConnectionDiscardCounter counts pooled connections discarded after a failed schema reset
	ConnectionDiscardCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_connection_discards_total",
			Help: "Total number of connections discarded because the schema reset failed",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDurationHistogram)
	prometheus.MustRegister(TenantResolutionCounter)
	prometheus.MustRegister(TenantResolutionFailureCounter)
	prometheus.MustRegister(SyncCounter)
	prometheus.MustRegister(SyncRetryCounter)
	prometheus.MustRegister(ProvisionRunCounter)
	prometheus.MustRegister(ProvisionStepFailureCounter)
	prometheus.MustRegister(ConnectionDiscardCounter)
}

// RecordResolution records which source resolved the tenant for a request
func RecordResolution(source string) {
	TenantResolutionCounter.WithLabelValues(source).Inc()
}

// RecordSync records the outcome of one synchronizer invocation
func RecordSync(entity, outcome string) {
	SyncCounter.WithLabelValues(entity, outcome).Inc()
}

// GetPrometheusHandler returns an HTTP handler for exposing Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is an Echo middleware function that records HTTP request metrics
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			// Record metrics after the request is processed
			status := c.Response().Status
			method := c.Request().Method
			path := c.Path()
			statusStr := strconv.Itoa(status)

			RequestCounter.WithLabelValues(method, path, statusStr).Inc()

			duration := time.Since(start).Seconds()
			RequestDurationHistogram.WithLabelValues(method, path, statusStr).Observe(duration)

			return err
		}
	}
}
