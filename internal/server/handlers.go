package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/retrofitforge/twin/internal/building"
	"github.com/retrofitforge/twin/internal/livemetrics"
	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/sequencer"
	"github.com/retrofitforge/twin/internal/sessions"
	"github.com/retrofitforge/twin/internal/storage"
)

// hostStatsTimeout bounds the gopsutil probes made by /health.
const hostStatsTimeout = 500 * time.Millisecond

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store               storage.Store
	sessions            *sessions.Registry
	binding             *sessions.Binding
	sequencer           *sequencer.Sequencer
	metrics             *livemetrics.Source
	broker              *Broker
	logger              *slog.Logger
	startedAt           time.Time
	now                 func() time.Time
	version             string
	baseURL             string
	maxRequestBodyBytes int64
	hostStats           bool
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Binding, Broker, OpenAPISpec.
type HandlersDeps struct {
	Store               storage.Store
	Sessions            *sessions.Registry
	Binding             *sessions.Binding
	Sequencer           *sequencer.Sequencer
	Metrics             *livemetrics.Source
	Broker              *Broker
	Logger              *slog.Logger
	Version             string
	BaseURL             string
	MaxRequestBodyBytes int64
	// HostStats adds CPU and memory usage to /health.
	HostStats   bool
	OpenAPISpec []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	maxBody := d.MaxRequestBodyBytes
	if maxBody <= 0 {
		maxBody = 64 * 1024
	}
	return &Handlers{
		store:               d.Store,
		sessions:            d.Sessions,
		binding:             d.Binding,
		sequencer:           d.Sequencer,
		metrics:             d.Metrics,
		broker:              d.Broker,
		logger:              d.Logger,
		startedAt:           time.Now(),
		now:                 time.Now,
		version:             d.Version,
		baseURL:             d.BaseURL,
		maxRequestBodyBytes: maxBody,
		hostStats:           d.HostStats,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleOpenAPISpec serves the embedded OpenAPI document.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "openapi document not available")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK

	storageStatus := h.store.Backend() + ":connected"
	if err := h.store.Ping(r.Context()); err != nil {
		storageStatus = h.store.Backend() + ":disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	metricsStatus := "idle"
	if h.metrics.Running() {
		metricsStatus = "running"
	}

	resp := model.HealthResponse{
		Status:        status,
		Version:       h.version,
		Storage:       storageStatus,
		MetricsSource: metricsStatus,
		Presentation:  string(h.sequencer.Status()),
		Uptime:        int64(time.Since(h.startedAt).Seconds()),
	}
	if h.broker != nil {
		resp.SSEBroker = "running"
	}
	if h.hostStats {
		resp.CPUPercent, resp.MemUsedPercent = h.probeHost(r.Context())
	}

	writeJSON(w, r, httpStatus, resp)
}

// probeHost samples host CPU and memory usage. Failures leave the field
// unset; host stats never affect the health verdict.
func (h *Handlers) probeHost(ctx context.Context) (cpuPct, memPct *float64) {
	ctx, cancel := context.WithTimeout(ctx, hostStatsTimeout)
	defer cancel()

	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pcts) > 0 {
		v := building.Round1(pcts[0])
		cpuPct = &v
	} else if err != nil {
		h.logger.Debug("health: cpu probe failed", "error", err)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		v := building.Round1(vm.UsedPercent)
		memPct = &v
	} else {
		h.logger.Debug("health: memory probe failed", "error", err)
	}
	return cpuPct, memPct
}

// HandleEvents handles GET /api/presentation/events (SSE).
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeServiceUnavailable, "event stream not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Disable the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	// New subscribers get the current state first so the page can render
	// without waiting for the next transition.
	if _, err := w.Write(statusEvent(h.sequencer.State())); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// --- Shared helpers ---

func parseSessionID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("session_id")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("session_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid session_id: %s", raw)
	}
	return id, nil
}

// maxQueryLimit is the maximum allowed value for limit query parameters.
const maxQueryLimit = 1000

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// queryLimit returns a bounded limit value from query params.
// Values are clamped to [1, maxQueryLimit].
func queryLimit(r *http.Request, defaultVal int) int {
	limit := queryInt(r, "limit", defaultVal)
	if limit < 1 {
		return 1
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}
