/*
Package httpapi exposes the persona MCP server as a small REST API.

Every data endpoint is forwarded to an MCP tool through a Forwarder, normally
the stdio bridge to a child persona-mcp process. Tool results are returned
as-is, in MCP result shape.
*/
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanglvm/persona-mcp/internal/logging"
)

// Forwarder calls tools on an MCP server.
type Forwarder interface {
	CallTool(ctx context.Context, name string, args interface{}) (json.RawMessage, error)
	Initialized() bool
}

// Options configures the API server.
type Options struct {
	// APIKey, when set, must be sent in the X-API-Key header.
	APIKey string

	// RateLimit is the sustained requests per second. 0 disables limiting.
	RateLimit float64
	Burst     int

	// RequestTimeout bounds each forwarded tool call.
	RequestTimeout time.Duration

	// Registry receives the API metrics; nil creates a private registry.
	Registry *prometheus.Registry

	Version string
	Logger  *zap.Logger
}

// Server is the REST API.
type Server struct {
	fwd     Forwarder
	opts    Options
	logger  *zap.Logger
	limiter *rate.Limiter
	metrics *metrics
	router  chi.Router
	now     func() time.Time
}

// endpoints lists the routes for the index and 404 responses.
var endpoints = []struct {
	Route       string
	Description string
}{
	{"GET /", "API info"},
	{"GET /health", "Health check"},
	{"GET /personas", "List all personas"},
	{"GET /personas/:id", "Get persona details"},
	{"POST /search", "Search knowledge base"},
	{"POST /ask", "Ask a persona"},
	{"POST /suggest", "Suggest a persona for a context"},
	{"GET /stats", "Get statistics"},
	{"GET /metrics", "Prometheus metrics"},
}

// New creates the API server.
func New(fwd Forwarder, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		fwd:     fwd,
		opts:    opts,
		logger:  logging.OrNop(opts.Logger),
		metrics: newMetrics(opts.Registry),
		now:     time.Now,
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.RateLimit)*2 + 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.corsMiddleware)
	r.Use(s.instrumentMiddleware)
	r.Use(s.apiKeyMiddleware)
	r.Use(s.rateLimitMiddleware)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/personas", s.handlePersonas)
	r.Get("/personas/{id}", s.handlePersona)
	r.Post("/search", s.handleSearch)
	r.Post("/ask", s.handleAsk)
	r.Post("/suggest", s.handleSuggest)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}))

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)
	return r
}
