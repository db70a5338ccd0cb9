// Package metrics provides Prometheus metrics for the Sensei server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensei_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensei_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensei_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	// Permission metrics
	permissionChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensei_permission_checks_total",
			Help: "Total permission gate checks",
		},
		[]string{"result"},
	)

	// Filesystem metrics
	fileOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensei_file_operations_total",
			Help: "Total virtual filesystem operations",
		},
		[]string{"operation", "status"},
	)

	searchResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensei_search_results_total",
			Help: "Total files returned by search",
		},
	)

	// Document store metrics
	docstoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensei_docstore_operation_duration_seconds",
			Help:    "Document store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	usersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensei_users_total",
			Help: "Number of registered users",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordPermissionCheck records a permission gate decision.
func RecordPermissionCheck(allowed bool) {
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	permissionChecksTotal.WithLabelValues(result).Inc()
}

// RecordFileOperation records a filesystem operation.
func RecordFileOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	fileOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordSearchResults records the number of files a search returned.
func RecordSearchResults(count int) {
	searchResultsTotal.Add(float64(count))
}

// RecordDocstoreOp records a document store operation duration.
func RecordDocstoreOp(operation string, duration time.Duration) {
	docstoreOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetUsersTotal sets the registered user count.
func SetUsersTotal(count int64) {
	usersTotal.Set(float64(count))
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
