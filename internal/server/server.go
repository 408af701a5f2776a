package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/retrofitforge/twin/internal/livemetrics"
	"github.com/retrofitforge/twin/internal/ratelimit"
	"github.com/retrofitforge/twin/internal/sequencer"
	"github.com/retrofitforge/twin/internal/sessions"
	"github.com/retrofitforge/twin/internal/storage"
)

// Server is the digital twin demo HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Binding, Broker, Limiter, MCPServer, UIFS,
// OpenAPISpec.
type ServerConfig struct {
	// Required dependencies.
	Store     storage.Store
	Sessions  *sessions.Registry
	Sequencer *sequencer.Sequencer
	Metrics   *livemetrics.Source
	Logger    *slog.Logger

	// Optional dependencies (nil = disabled).
	Binding   *sessions.Binding
	Broker    *Broker
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	BaseURL             string
	MaxRequestBodyBytes int64
	CORSAllowedOrigins  []string
	HostStats           bool

	// Embedded demo page and API description.
	UIFS        fs.FS
	OpenAPISpec []byte

	// Embedder extensions. ExtraRoutes run after the built-in routes are
	// registered; Middlewares wrap the whole handler, first one outermost.
	ExtraRoutes []func(mux *http.ServeMux)
	Middlewares []func(http.Handler) http.Handler
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Store:               cfg.Store,
		Sessions:            cfg.Sessions,
		Binding:             cfg.Binding,
		Sequencer:           cfg.Sequencer,
		Metrics:             cfg.Metrics,
		Broker:              cfg.Broker,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		BaseURL:             cfg.BaseURL,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		HostStats:           cfg.HostStats,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	// Control endpoints are rate limited per client IP. Reads are not.
	limited := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}, cfg.Logger)
	post := func(fn http.HandlerFunc) http.Handler { return limited(fn) }

	mux := http.NewServeMux()

	// Health.
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Building reports.
	mux.Handle("GET /api/building/{id}/info", h.HandleBuildingInfo())
	mux.Handle("GET /api/building/{id}/analysis", h.HandleBuildingAnalysis())
	mux.Handle("GET /api/building/{id}/carbon-metrics", h.HandleCarbonMetrics())
	mux.Handle("GET /api/building/{id}/investment-analysis", h.HandleInvestmentAnalysis())
	mux.Handle("GET /api/pointcloud/{id}", h.HandlePointCloud())
	mux.Handle("GET /api/export/analysis/{id}", h.HandleExportAnalysis())

	// Live metrics.
	mux.HandleFunc("GET /api/metrics/live", h.HandleLiveMetrics)
	mux.HandleFunc("GET /api/metrics/history", h.HandleMetricsHistory)

	// Demo sessions. Literal segments win over {session_id}.
	mux.Handle("POST /api/demo/start", post(h.HandleStartDemo))
	mux.Handle("POST /api/demo/stop", post(h.HandleStopDemo))
	mux.Handle("POST /api/demo/{session_id}/complete", post(h.HandleCompleteDemo))
	mux.HandleFunc("GET /api/demo/sessions", h.HandleListDemos)
	mux.HandleFunc("GET /api/demo/status", h.HandleDemoStatus)
	mux.HandleFunc("GET /api/demo/qr", h.HandleDemoQR)
	mux.HandleFunc("GET /api/demo/{session_id}", h.HandleGetDemo)

	// Presentation.
	mux.HandleFunc("GET /api/presentation", h.HandlePresentation)
	mux.HandleFunc("GET /api/presentation/script", h.HandleScript)
	mux.Handle("POST /api/presentation/start", post(h.HandleStartPresentation))
	mux.Handle("POST /api/presentation/pause", post(h.HandlePausePresentation))
	mux.Handle("POST /api/presentation/resume", post(h.HandleResumePresentation))
	mux.Handle("POST /api/presentation/next", post(h.HandleNextStep))
	mux.Handle("POST /api/presentation/previous", post(h.HandlePreviousStep))
	mux.Handle("POST /api/presentation/stop", post(h.HandleStopPresentation))

	// Event stream (no rate limit: long-lived connection).
	mux.HandleFunc("GET /api/presentation/events", h.HandleEvents)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	for _, register := range cfg.ExtraRoutes {
		register(mux)
	}

	// Registered last so all API routes take priority via the mux's longest-match rule.
	if cfg.UIFS != nil {
		mux.Handle("/", newSPAHandler(cfg.UIFS))
		cfg.Logger.Info("ui enabled, serving demo page at /")
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → CORS → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = corsMiddleware(cfg.CORSAllowedOrigins, handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler:    handler,
		logger:     cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
