package server

import (
	"errors"
	"net/http"

	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/sequencer"
)

// HandlePresentation handles GET /api/presentation.
func (h *Handlers) HandlePresentation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.presentation())
}

// HandleScript handles GET /api/presentation/script.
func (h *Handlers) HandleScript(w http.ResponseWriter, r *http.Request) {
	script := h.sequencer.Script()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"summary": script.Summary(),
		"steps":   script.Steps(),
	})
}

// HandleStartPresentation handles POST /api/presentation/start. The optional
// body names a demo session to complete when the presentation finishes.
func (h *Handlers) HandleStartPresentation(w http.ResponseWriter, r *http.Request) {
	var req model.StartPresentationRequest
	if err := decodeOptionalJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	if req.SessionID != nil {
		if h.binding == nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "session binding is not available")
			return
		}
		s, err := h.sessions.Get(r.Context(), *req.SessionID)
		if err != nil {
			h.writeSessionError(w, r, err)
			return
		}
		if s.Completed {
			writeError(w, r, http.StatusConflict, model.ErrCodeAlreadyCompleted, "demo session already completed")
			return
		}
	}

	// The binding is set inside the start transition so this run's
	// completion can never be delivered before it.
	var bind func(run uint64)
	if h.binding != nil {
		if req.SessionID != nil {
			id := *req.SessionID
			bind = func(run uint64) { h.binding.BindRun(run, id) }
		} else {
			bind = func(uint64) { h.binding.Unbind() }
		}
	}
	if err := h.sequencer.StartWith(bind); err != nil {
		h.writeTransitionError(w, r, err)
		return
	}
	h.respondPresentation(w, r)
}

// HandlePausePresentation handles POST /api/presentation/pause.
func (h *Handlers) HandlePausePresentation(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sequencer.Pause)
}

// HandleResumePresentation handles POST /api/presentation/resume.
func (h *Handlers) HandleResumePresentation(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sequencer.Resume)
}

// HandleNextStep handles POST /api/presentation/next.
func (h *Handlers) HandleNextStep(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sequencer.Next)
}

// HandlePreviousStep handles POST /api/presentation/previous.
func (h *Handlers) HandlePreviousStep(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sequencer.Previous)
}

// HandleStopPresentation handles POST /api/presentation/stop. Unlike
// /api/demo/stop, stopping an idle presentation is a 409.
func (h *Handlers) HandleStopPresentation(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sequencer.Stop)
}

func (h *Handlers) control(w http.ResponseWriter, r *http.Request, op func() error) {
	if err := op(); err != nil {
		h.writeTransitionError(w, r, err)
		return
	}
	h.respondPresentation(w, r)
}

// respondPresentation writes the post-transition state and pushes it to
// SSE subscribers.
func (h *Handlers) respondPresentation(w http.ResponseWriter, r *http.Request) {
	resp := h.presentation()
	h.publishStatus(resp.State)
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handlers) presentation() model.PresentationResponse {
	return model.PresentationResponse{
		State:  h.sequencer.State(),
		Script: h.sequencer.Script().Summary(),
	}
}

func (h *Handlers) publishStatus(state model.PresentationState) {
	if h.broker != nil {
		h.broker.PublishStatus(state)
	}
}

func (h *Handlers) writeTransitionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, sequencer.ErrInvalidTransition) {
		writeError(w, r, http.StatusConflict, model.ErrCodeInvalidTransition, err.Error())
		return
	}
	h.logger.Error("presentation control failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "presentation control failed")
}
