package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimd_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trimd_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	solvesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimd_solves_total",
			Help: "Total number of trim solves by outcome.",
		},
		[]string{"outcome"},
	)

	solveDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trimd_solve_duration_seconds",
			Help:    "Trim solve duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		},
	)

	solveEvaluations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trimd_solve_evaluations",
			Help:    "Residual evaluations per trim solve.",
			Buckets: prometheus.ExponentialBuckets(8, 2, 9),
		},
	)

	sweepDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trimd_sweep_duration_seconds",
			Help:    "Full sweep duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	sweepPointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimd_sweep_points_total",
			Help: "Total grid points swept by outcome.",
		},
		[]string{"outcome"},
	)

	tableAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trimd_table_age_seconds",
			Help: "Age of the current trim table in seconds. -1 when no table is loaded.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(solvesTotal)
	prometheus.MustRegister(solveDurationSeconds)
	prometheus.MustRegister(solveEvaluations)
	prometheus.MustRegister(sweepDurationSeconds)
	prometheus.MustRegister(sweepPointsTotal)
	prometheus.MustRegister(tableAgeSeconds)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSolve records one trim solve. Outcome is "converged",
// "not_converged" or "error".
func RecordSolve(duration float64, outcome string, evaluations int) {
	solvesTotal.WithLabelValues(outcome).Inc()
	solveDurationSeconds.Observe(duration)
	if evaluations > 0 {
		solveEvaluations.Observe(float64(evaluations))
	}
}

// RecordSweep records one completed sweep.
func RecordSweep(duration float64, converged, failed int) {
	sweepDurationSeconds.Observe(duration)
	sweepPointsTotal.WithLabelValues("converged").Add(float64(converged))
	sweepPointsTotal.WithLabelValues("failed").Add(float64(failed))
}

// SetTableAge updates the trim table age gauge.
func SetTableAge(seconds float64) {
	tableAgeSeconds.Set(seconds)
}

// knownRoutes are the exact paths the server registers. Anything else is
// collapsed to "other" to keep label cardinality bounded against scanners.
var knownRoutes = map[string]bool{
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/":                    true,
	"/api/v1/trim":         true,
	"/api/v1/sweep":        true,
	"/api/v1/sweep/latest": true,
	"/api/v1/envelope":     true,
}

// normalizeRoute maps a request path to a bounded set of metric labels.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	// Trailing slashes on known routes count as the known route.
	if trimmed := strings.TrimRight(path, "/"); trimmed != "" && knownRoutes[trimmed] {
		return trimmed
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
