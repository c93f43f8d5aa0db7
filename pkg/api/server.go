package api

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/provisioner/pkg/httputil"
	"github.com/platinummonkey/provisioner/pkg/middleware"
	"github.com/platinummonkey/provisioner/pkg/observability"
)

// defaultMaxBodyBytes applies when Options.MaxBodyBytes is unset
const defaultMaxBodyBytes = 1 << 20

// Options wires the server's dependencies. Only Provisioner or ConfigError
// is required.
type Options struct {
	Logger  *logrus.Logger
	Metrics *observability.Metrics

	// Provisioner serves the admin route. ConfigError, when set, makes the
	// admin route answer 500 instead.
	Provisioner Provisioner
	ConfigError error

	// Limiter rate limits the admin route; nil disables limiting
	Limiter middleware.Limiter

	// Submissions serves the form bridge; nil leaves the route unregistered
	Submissions http.Handler

	CORSOrigins  []string
	MaxBodyBytes int64
	StaticDir    string
	Tracing      bool
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	opts    Options
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
	}
	s.setupRoutes()
	s.handler = s.buildHandler()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics))
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteCodedError(w, http.StatusNotFound, "not_found", "not found")
	})

	admin := NewAdminHandlers(s.opts.Provisioner, s.opts.ConfigError)
	s.RegisterRoutes(admin.WithLimiter(s.opts.Limiter))

	if s.opts.Submissions != nil {
		s.router.Handle("/forms/submissions", s.opts.Submissions)
	}

	// Must be last: the frontend claims every remaining GET path
	if s.opts.StaticDir != "" {
		s.router.PathPrefix("/").
			Methods(http.MethodGet, http.MethodHead).
			Handler(newSPAHandler(s.opts.StaticDir))
	}
}

// buildHandler wraps the router in the server-wide middleware
func (s *Server) buildHandler() http.Handler {
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.opts.Logger),
		httputil.RecoveryMiddleware,
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", AdminTokenHeader, httputil.RequestIDHeader},
			ExposedHeaders: []string{httputil.RequestIDHeader, "Retry-After"},
			MaxAge:         300,
		}),
		httputil.MaxBytesMiddleware(s.opts.MaxBodyBytes),
	)(s.router)

	if s.opts.Tracing {
		h = otelhttp.NewHandler(h, "provisioner-api")
	}
	return h
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router, e.g. for route listing in tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}
