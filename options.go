package twin

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported: callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	scriptPath      string
	steps           []Step
	logger          *slog.Logger
	version         string
	observers       []PresentationObserver
	routeRegistrars []RouteRegistrar
	middlewares     []Middleware
}

// WithPort overrides the TCP port from config (TWIN_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the storage URL from config (TWIN_DATABASE_URL env var).
// Use "memory" to keep everything in process.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithScriptFile loads the narration script from a YAML file instead of the
// built-in walkthrough (TWIN_SCRIPT_PATH env var).
func WithScriptFile(path string) Option {
	return func(o *resolvedOptions) { o.scriptPath = path }
}

// WithScript plays the given steps. Index is assigned from position and
// Duration is truncated to milliseconds. Takes precedence over WithScriptFile.
func WithScript(steps ...Step) Option {
	return func(o *resolvedOptions) { o.steps = append([]Step(nil), steps...) }
}

// WithLogger sets the structured logger for the App.
// If not set, a JSON logger at TWIN_LOG_LEVEL writing to stdout is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithObserver registers an observer for presentation events. All
// registered observers receive every event, after the built-in SSE broker.
func WithObserver(obs PresentationObserver) Option {
	return func(o *resolvedOptions) { o.observers = append(o.observers, obs) }
}

// WithExtraRoutes registers additional routes on the shared HTTP mux.
// Multiple registrars may be registered; all are called in registration order.
func WithExtraRoutes(fn RouteRegistrar) Option {
	return func(o *resolvedOptions) { o.routeRegistrars = append(o.routeRegistrars, fn) }
}

// WithMiddleware registers an outermost HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost (called first by every request).
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}
