package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/skip2/go-qrcode"

	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/sequencer"
	"github.com/retrofitforge/twin/internal/sessions"
)

// QR code size bounds in pixels.
const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// HandleStartDemo handles POST /api/demo/start. The body is optional.
// Starting a demo also starts the live metrics source if it is idle.
func (h *Handlers) HandleStartDemo(w http.ResponseWriter, r *http.Request) {
	var req model.StartDemoRequest
	if err := decodeOptionalJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := model.ValidateInvestorInfo(req.InvestorInfo); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	s, err := h.sessions.Start(r.Context(), req.InvestorInfo)
	if err != nil {
		h.logger.Error("start demo session failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to start demo session")
		return
	}

	if !h.metrics.Running() {
		h.metrics.Start()
	}

	script := h.sequencer.Script()
	writeJSON(w, r, http.StatusCreated, model.StartDemoResponse{
		SessionID:    s.SessionID,
		Status:       "started",
		StartedAt:    s.StartedAt,
		DemoDuration: script.TotalDuration().String(),
		Sections:     len(script.Sections()),
	})
}

// HandleCompleteDemo handles POST /api/demo/{session_id}/complete.
func (h *Handlers) HandleCompleteDemo(w http.ResponseWriter, r *http.Request) {
	id, err := parseSessionID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	s, err := h.sessions.Complete(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.CompleteDemoResponse{
		SessionID: s.SessionID,
		Status:    "completed",
		EndedAt:   *s.EndedAt,
		Message:   "Thank you for viewing the demo",
	})
}

// HandleGetDemo handles GET /api/demo/{session_id}.
func (h *Handlers) HandleGetDemo(w http.ResponseWriter, r *http.Request) {
	id, err := parseSessionID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	s, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s)
}

// HandleListDemos handles GET /api/demo/sessions.
func (h *Handlers) HandleListDemos(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, sessions.DefaultListLimit)
	list, err := h.sessions.List(r.Context(), limit)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	if list == nil {
		list = []model.DemoSession{}
	}
	writeList(w, r, list, len(list), limit)
}

// HandleDemoStatus handles GET /api/demo/status.
func (h *Handlers) HandleDemoStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.DemoStatusResponse{
		Presentation:   h.sequencer.State(),
		MetricsRunning: h.metrics.Running(),
		Uptime:         int64(h.now().Sub(h.startedAt).Seconds()),
	})
}

// HandleStopDemo handles POST /api/demo/stop. It stops the presentation and
// leaves the process running. Stopping an idle presentation succeeds.
func (h *Handlers) HandleStopDemo(w http.ResponseWriter, r *http.Request) {
	if err := h.sequencer.Stop(); err != nil && !errors.Is(err, sequencer.ErrInvalidTransition) {
		h.logger.Error("stop presentation failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to stop presentation")
		return
	}
	state := h.sequencer.State()
	h.publishStatus(state)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":       "stopped",
		"presentation": state,
	})
}

// HandleDemoQR handles GET /api/demo/qr?size=. It returns a PNG QR code
// linking to the public demo URL.
func (h *Handlers) HandleDemoQR(w http.ResponseWriter, r *http.Request) {
	size := queryInt(r, "size", defaultQRSize)
	size = max(minQRSize, min(size, maxQRSize))

	png, err := qrcode.Encode(h.baseURL, qrcode.Medium, size)
	if err != nil {
		h.logger.Error("encode demo qr code failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to encode QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// writeSessionError maps registry errors to HTTP responses.
func (h *Handlers) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "demo session not found")
	case errors.Is(err, sessions.ErrAlreadyCompleted):
		writeError(w, r, http.StatusConflict, model.ErrCodeAlreadyCompleted, "demo session already completed")
	default:
		h.logger.Error("demo session operation failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "demo session operation failed")
	}
}
