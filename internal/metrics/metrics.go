// Package metrics Prometheus collectors of the bridge (exposed on /metrics).
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_http_requests_total",
			Help: "HTTP requests served by the bridge",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	deviceCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_device_calls_total",
			Help: "Requests sent to the access-control terminal by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	deviceCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_device_call_duration_seconds",
			Help:    "Terminal request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// EventsReceived webhook notifications by result (accepted, ignored).
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_received_total",
			Help: "Terminal notifications received by the webhook",
		},
		[]string{"result"},
	)

	// SyncItems reconciled roster items by status.
	SyncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_sync_items_total",
			Help: "Roster items reconciled into the terminal",
		},
		[]string{"status"},
	)

	// RadarWaits radar waits by result (event, timeout, cancelled, error).
	RadarWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_radar_waits_total",
			Help: "Radar waits by result",
		},
		[]string{"result"},
	)

	RosterCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_roster_cache_hits_total",
		Help: "Roster cache hits",
	})
	RosterCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_roster_cache_misses_total",
		Help: "Roster cache misses",
	})
)

// DeviceObserver feeds device call metrics; plugs into device.Options.Observer.
type DeviceObserver struct{}

func (DeviceObserver) ObserveDeviceCall(op, outcome string, elapsed time.Duration) {
	deviceCallsTotal.WithLabelValues(op, outcome).Inc()
	deviceCallDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Middleware records request count and duration per normalized path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := NormalizePath(r.URL.Path)

		wrapped := newResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// NormalizePath collapses identifiers so label cardinality stays bounded:
// /api/cliente/42/foto -> /api/cliente/{id}/foto.
func NormalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/uploads/"):
		return "/uploads/{file}"
	case strings.HasPrefix(path, "/api/cliente/"):
		parts := strings.Split(strings.TrimPrefix(path, "/api/cliente/"), "/")
		out := "/api/cliente/{id}"
		if len(parts) > 1 {
			out += "/" + parts[1]
		}
		if len(parts) > 2 {
			out += "/{cardNo}"
		}
		return out
	case strings.HasPrefix(path, "/api/puerta/"):
		return "/api/puerta/{door}/abrir"
	default:
		return path
	}
}
