// Package httpapi exposes the board engine over HTTP.
//
// Every mutating route maps one-to-one onto an engine operation. Errors are
// mapped by kind: ErrNotFound is 404, ErrConflict 409, ErrInvalidBucket 422
// and validation failures 400 with the failing fields.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pipeboard/internal/board"
	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Options configures a Server. Engine is required.
type Options struct {
	Engine         *board.Engine
	Tags           []types.Tag
	AllowedOrigins []string
	Version        string
	Checks         map[string]Check
	Logger         *zap.Logger

	// Registry receives the metrics. Nil uses a private registry.
	Registry *prometheus.Registry
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine  *board.Engine
	tags    []types.Tag
	health  *HealthHandler
	metrics *Metrics
	logger  *zap.Logger
	router  chi.Router
}

// New builds the router.
func New(opts Options) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tags := opts.Tags
	if tags == nil {
		tags = []types.Tag{}
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		engine:  opts.Engine,
		tags:    tags,
		health:  NewHealthHandler(opts.Version, opts.Checks),
		metrics: NewMetrics(reg),
		logger:  logger,
	}
	s.metrics.SetRevision(s.engine.Revision())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/board", s.handleBoard)
	r.Get("/buckets", s.handleBuckets)
	r.Get("/buckets/{id}", s.handleBucket)
	r.Get("/tags", s.handleTags)

	r.Route("/records", func(r chi.Router) {
		r.Get("/", s.handleQuery)
		r.Post("/", s.handleUpsert)
		r.Get("/{id}", s.handleFindRecord)
	})
	r.Post("/moves", s.handleMove)
	r.Route("/deletions", func(r chi.Router) {
		r.Post("/", s.handleRequestDelete)
		r.Get("/{token}", s.handlePendingDelete)
		r.Post("/{token}/confirm", s.handleConfirmDelete)
		r.Delete("/{token}", s.handleCancelDelete)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs one line per request with zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
