package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/retrofitforge/twin/internal/livemetrics"
	"github.com/retrofitforge/twin/internal/model"
	"github.com/retrofitforge/twin/internal/storage"
)

// HandleLiveMetrics handles GET /api/metrics/live.
func (h *Handlers) HandleLiveMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.metrics.Dashboard())
}

// HandleMetricsHistory handles GET /api/metrics/history?name=&limit=.
func (h *Handlers) HandleMetricsHistory(w http.ResponseWriter, r *http.Request) {
	name := model.MetricName(r.URL.Query().Get("name"))
	if name != "" {
		if _, err := h.metrics.CurrentValue(name); err != nil {
			if errors.Is(err, livemetrics.ErrUnknownMetric) {
				writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
					fmt.Sprintf("unknown metric %q", name))
				return
			}
		}
	}
	limit := queryLimit(r, storage.DefaultSampleLimit)

	samples, err := h.store.RecentSamples(r.Context(), name, limit)
	if err != nil {
		h.logger.Error("metrics history failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to load metric history")
		return
	}
	if samples == nil {
		samples = []model.MetricSample{}
	}
	writeList(w, r, samples, len(samples), limit)
}
