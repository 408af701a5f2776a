package twin

import "net/http"

// PresentationObserver receives presentation events. Callbacks run on the
// goroutine that caused the transition, after the sequencer has released
// its lock, so they may call back into the App but must not block for long.
type PresentationObserver interface {
	StepActivated(step Step)
	SectionChanged(section int)
	Completed()
	Stopped()
}

// RouteRegistrar registers additional routes on the shared HTTP mux.
// Extra routes share the middleware chain and OTEL instrumentation with the
// built-in routes. It is called once during New after those are registered.
type RouteRegistrar func(mux *http.ServeMux)

// Middleware wraps the root HTTP handler.
// Applied outermost (before routing), so it sees all requests including /health.
// Multiple middlewares are applied in registration order (first-registered = outermost).
type Middleware func(http.Handler) http.Handler
