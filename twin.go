// Package twin embeds the digital twin investor demo server.
//
// An App wires storage, the presentation sequencer, live metrics, the MCP
// server and the HTTP API from environment configuration. Options override
// individual settings and add extension points for embedders.
//
//	app, err := twin.New(ctx, twin.WithVersion("1.2.0"))
//	if err != nil {
//		return err
//	}
//	return app.Run(ctx)
package twin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/retrofitforge/twin/api"
	"github.com/retrofitforge/twin/internal/config"
	"github.com/retrofitforge/twin/internal/livemetrics"
	"github.com/retrofitforge/twin/internal/mcp"
	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/narration"
	"github.com/retrofitforge/twin/internal/ratelimit"
	"github.com/retrofitforge/twin/internal/sequencer"
	"github.com/retrofitforge/twin/internal/server"
	"github.com/retrofitforge/twin/internal/sessions"
	"github.com/retrofitforge/twin/internal/storage"
	"github.com/retrofitforge/twin/internal/telemetry"
	"github.com/retrofitforge/twin/web"
)

// shutdownPhaseTimeout bounds each graceful shutdown phase.
const shutdownPhaseTimeout = 10 * time.Second

// App is a fully wired demo server. Create one with New, serve with Run.
type App struct {
	cfg          config.Config
	version      string
	logger       *slog.Logger
	store        storage.Store
	seq          *sequencer.Sequencer
	metrics      *livemetrics.Source
	broker       *server.Broker
	limiter      ratelimit.Limiter
	srv          *server.Server
	otelShutdown telemetry.Shutdown
	closeOnce    sync.Once
}

// New loads configuration, applies opts and wires every component. Storage
// is opened and migrated here; nothing is served until Run.
func New(ctx context.Context, opts ...Option) (*App, error) {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("twin: config: %w", err)
	}

	o := resolvedOptions{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.scriptPath != "" {
		cfg.ScriptPath = o.scriptPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("twin: config: %w", err)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		}))
	}

	a := &App{cfg: cfg, version: o.version, logger: logger}
	if err := a.wire(ctx, o); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, o resolvedOptions) error {
	cfg, logger := a.cfg, a.logger

	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     a.version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return fmt.Errorf("twin: telemetry: %w", err)
	}
	a.otelShutdown = otelShutdown

	a.store, err = storage.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("twin: storage: %w", err)
	}
	logger.Info("storage: ready", "backend", a.store.Backend())

	registry := sessions.NewRegistry(a.store, logger)
	binding := sessions.NewBinding(registry)
	a.broker = server.NewBroker(logger)

	script, err := resolveScript(o, cfg.ScriptPath, logger)
	if err != nil {
		return err
	}

	observers := sequencer.Observers{a.broker, binding}
	for _, obs := range o.observers {
		observers = append(observers, observerBridge{obs})
	}
	a.seq, err = sequencer.New(script, observers, sequencer.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("twin: sequencer: %w", err)
	}

	a.metrics = livemetrics.New(livemetrics.Config{
		Interval: cfg.MetricsInterval,
		Sink:     a.store,
		OnSample: a.broker.PublishMetrics,
		Logger:   logger,
	})
	if err := a.metrics.RegisterGauges(); err != nil {
		logger.Warn("live metrics: register gauges failed", "error", err)
	}

	a.limiter = ratelimit.New(cfg.RateLimitEnabled, cfg.RateLimitRPS, cfg.RateLimitBurst)
	if cfg.RateLimitEnabled {
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		logger.Info("rate limiting: disabled")
	}

	mcpSrv := mcp.New(mcp.Config{
		Sequencer: a.seq,
		Metrics:   a.metrics,
		OnControl: a.broker.PublishStatus,
		Version:   a.version,
		Logger:    logger,
	})

	uiFS, err := web.DistFS()
	if err != nil {
		return fmt.Errorf("twin: web: %w", err)
	}

	extraRoutes := make([]func(*http.ServeMux), 0, len(o.routeRegistrars))
	for _, r := range o.routeRegistrars {
		extraRoutes = append(extraRoutes, r)
	}
	middlewares := make([]func(http.Handler) http.Handler, 0, len(o.middlewares))
	for _, m := range o.middlewares {
		middlewares = append(middlewares, m)
	}

	a.srv = server.New(server.ServerConfig{
		Store:               a.store,
		Sessions:            registry,
		Binding:             binding,
		Sequencer:           a.seq,
		Metrics:             a.metrics,
		Broker:              a.broker,
		Limiter:             a.limiter,
		MCPServer:           mcpSrv.MCPServer(),
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             a.version,
		BaseURL:             cfg.BaseURL,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		HostStats:           cfg.HostStats,
		UIFS:                uiFS,
		OpenAPISpec:         api.OpenAPISpec,
		ExtraRoutes:         extraRoutes,
		Middlewares:         middlewares,
	})
	return nil
}

// Handler returns the root HTTP handler, including extra routes and
// middlewares. Useful for tests and for mounting under another server.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Status reports the presentation lifecycle state.
func (a *App) Status() Status {
	return Status(a.seq.Status())
}

// Logger returns the App's structured logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Run serves HTTP and runs sample retention until ctx is cancelled, then
// shuts down gracefully and releases every component. An App is not
// reusable after Run returns.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("twin starting", "version", a.version, "port", a.cfg.Port)
	defer a.Close()

	if a.cfg.MetricsAutostart {
		a.metrics.Start()
		a.logger.Info("live metrics: started at boot", "interval", a.cfg.MetricsInterval)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return storage.SampleRetention{
			Store:    a.store,
			MaxAge:   a.cfg.SampleRetention,
			Interval: a.cfg.RetentionInterval,
			Logger:   a.logger,
		}.Run(gctx)
	})
	g.Go(func() error {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("twin shutting down")

		// Closing the broker ends open SSE streams so Shutdown can drain.
		a.broker.Close()
		httpCtx, httpCancel := context.WithTimeout(context.Background(), shutdownPhaseTimeout)
		defer httpCancel()
		if err := a.srv.Shutdown(httpCtx); err != nil {
			a.logger.Error("http shutdown error", "error", err)
		}
		return nil
	})

	err := g.Wait()
	a.logger.Info("twin stopped")
	return err
}

// Close releases components in shutdown order: SSE broker, sequencer,
// metrics source, rate limiter, storage, then telemetry. Run calls it on
// return; embedders that only use Handler call it themselves. Idempotent.
func (a *App) Close() {
	a.closeOnce.Do(a.release)
}

func (a *App) release() {
	if a.broker != nil {
		a.broker.Close()
	}
	if a.seq != nil {
		a.seq.Close()
	}
	if a.metrics != nil {
		a.metrics.Stop()
	}
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if a.store != nil {
		a.store.Close(context.Background())
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownPhaseTimeout)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown error", "error", err)
		}
	}
}

// resolveScript picks the narration script: explicit steps first, then the
// configured file, then the built-in walkthrough.
func resolveScript(o resolvedOptions, path string, logger *slog.Logger) (narration.Script, error) {
	if len(o.steps) > 0 {
		steps := make([]model.NarrationStep, len(o.steps))
		for i, s := range o.steps {
			steps[i] = model.NarrationStep{
				SectionID:      s.Section,
				Text:           s.Text,
				DurationMillis: s.Duration.Milliseconds(),
				Action:         s.Action,
			}
		}
		script, err := narration.Build(steps)
		if err != nil {
			return narration.Script{}, fmt.Errorf("twin: script: %w", err)
		}
		return script, nil
	}
	if path == "" {
		return narration.Default(), nil
	}
	script, err := narration.LoadFile(path)
	if err != nil {
		return narration.Script{}, fmt.Errorf("twin: narration: %w", err)
	}
	logger.Info("narration: loaded script", "path", path, "steps", script.Len())
	return script, nil
}

// observerBridge adapts a public PresentationObserver to the sequencer.
type observerBridge struct {
	obs PresentationObserver
}

func (b observerBridge) StepActivated(step model.NarrationStep) {
	b.obs.StepActivated(Step{
		Index:    step.Index,
		Section:  step.SectionID,
		Text:     step.Text,
		Duration: step.Duration(),
		Action:   step.Action,
	})
}

func (b observerBridge) SectionChanged(sectionID int) { b.obs.SectionChanged(sectionID) }
func (b observerBridge) Completed()                   { b.obs.Completed() }
func (b observerBridge) Stopped()                     { b.obs.Stopped() }
