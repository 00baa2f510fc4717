// Package httpapi exposes the inventory engine over HTTP with chi.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/stockroom/internal/metrics"
	"github.com/mesh-intelligence/stockroom/internal/query"
	"github.com/mesh-intelligence/stockroom/internal/store"
)

// Server serves the inventory API.
type Server struct {
	store         *store.Store
	query         *query.Facade
	logger        *zap.Logger
	errorHandlers []errorHandler
	limiter       *rateLimiter
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit limits each client address to rps requests per second
// with bursts of up to burst. A non-positive rps leaves requests unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = newRateLimiter(rps, burst)
		}
	}
}

// NewServer creates a server over s. A nil logger disables logging.
func NewServer(s *store.Store, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{
		store:         s,
		query:         query.New(s),
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Handler returns the routed handler with recovery, request ids, request
// logging and metrics applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())
	if s.limiter != nil {
		r.Use(s.limiter.middleware)
	}

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.listCategories)
			r.Post("/", s.defineCategory)
			r.Get("/{name}", s.getCategory)
			r.Delete("/{name}", s.deleteCategory)
		})
		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.listGroups)
			r.Post("/", s.defineGroup)
			r.Get("/{name}", s.getGroup)
			r.Delete("/{name}", s.deleteGroup)
		})
		r.Route("/items", func(r chi.Router) {
			r.Get("/", s.listItems)
			r.Post("/", s.createItem)
			r.Get("/{id}", s.getItem)
			r.Patch("/{id}", s.updateItem)
			r.Delete("/{id}", s.deleteItem)
			r.Get("/{id}/history", s.itemHistory)
		})
		r.Get("/summary", s.summary)
		r.Get("/log", s.changeLog)
		r.Post("/undo", s.undo)
		r.Post("/reload", s.reload)
	})
	return r
}
