package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Metrics holds the collectors of one router.
type Metrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	activeConnections prometheus.Gauge
	boardOperations   *prometheus.CounterVec
	boardRevision     prometheus.Gauge
}

// NewMetrics registers the HTTP and board collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		activeConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_connections",
				Help: "Number of active HTTP connections",
			},
		),
		boardOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeboard_board_operations_total",
				Help: "Board operations by kind and result",
			},
			[]string{"op", "result"},
		),
		boardRevision: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeboard_board_revision",
				Help: "Revision of the in-memory board",
			},
		),
	}
}

// Middleware records request count, duration and in-flight connections.
// Paths are labelled with the chi route pattern to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.activeConnections.Inc()
		defer m.activeConnections.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		m.requestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordOperation counts a board operation under its result class.
func (m *Metrics) RecordOperation(op string, err error) {
	m.boardOperations.WithLabelValues(op, resultOf(err)).Inc()
}

// SetRevision publishes the current board revision.
func (m *Metrics) SetRevision(rev int64) {
	m.boardRevision.Set(float64(rev))
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrValidation):
		return "validation"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, types.ErrConflict):
		return "conflict"
	case errors.Is(err, types.ErrInvalidBucket):
		return "invalid_bucket"
	default:
		return "error"
	}
}
