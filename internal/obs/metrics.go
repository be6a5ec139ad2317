package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by all handlers.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Retrieval-core metrics.
var (
	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_searches_total",
			Help: "Total similarity searches by actor kind.",
		},
		[]string{"actor_kind"},
	)

	scopeViolationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retrieval_scope_violations_prevented_total",
		Help: "Rows dropped by the application-level scope filter. Non-zero values indicate a bug in the native predicate.",
	})

	embeddingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "embedding_request_duration_seconds",
		Help:    "Latency of embedding service calls.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	})

	auditDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_records_dropped_total",
		Help: "Audit records dropped because the recorder queue was full.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		searchesTotal, scopeViolationsTotal, embeddingDuration, auditDroppedTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSearch records one completed search for the given actor kind.
func ObserveSearch(actorKind string) {
	searchesTotal.WithLabelValues(actorKind).Inc()
}

// ObserveScopeViolations counts rows removed by the second-pass scope check.
func ObserveScopeViolations(n int) {
	if n > 0 {
		scopeViolationsTotal.Add(float64(n))
	}
}

// ObserveEmbedding records the duration of one embedding call.
func ObserveEmbedding(d time.Duration) {
	embeddingDuration.Observe(d.Seconds())
}

// ObserveAuditDrop counts one dropped audit record.
func ObserveAuditDrop() {
	auditDroppedTotal.Inc()
}

// Instrument wraps next with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses identifier path segments so metric label
// cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if strings.HasPrefix(path, "/v1/admin/credentials/") {
		rest := strings.TrimPrefix(path, "/v1/admin/credentials/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			return "/v1/admin/credentials/:id"
		case len(parts) == 2 && parts[1] == "revoke":
			return "/v1/admin/credentials/:id/revoke"
		}
	}
	if strings.HasPrefix(path, "/v1/data-items/") {
		rest := strings.TrimPrefix(path, "/v1/data-items/")
		if rest != "" && !strings.Contains(rest, "/") {
			return "/v1/data-items/:id"
		}
	}
	return path
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
