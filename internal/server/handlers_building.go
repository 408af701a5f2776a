package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/retrofitforge/twin/internal/building"
	"github.com/retrofitforge/twin/internal/model"
)

// buildingReport adapts a report builder into a handler keyed on the {id}
// path value. Unknown buildings are 404.
func (h *Handlers) buildingReport(build func(b *building.Building, now time.Time) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := building.Lookup(r.PathValue("id"))
		if err != nil {
			if errors.Is(err, building.ErrUnknownBuilding) {
				writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "building not found")
				return
			}
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to load building")
			return
		}
		writeJSON(w, r, http.StatusOK, build(b, h.now()))
	}
}

// HandleBuildingInfo handles GET /api/building/{id}/info.
func (h *Handlers) HandleBuildingInfo() http.HandlerFunc {
	return h.buildingReport(func(b *building.Building, now time.Time) any {
		return b.Info(now)
	})
}

// HandleBuildingAnalysis handles GET /api/building/{id}/analysis. The
// overview carries the current jittered readings.
func (h *Handlers) HandleBuildingAnalysis() http.HandlerFunc {
	return h.buildingReport(func(b *building.Building, now time.Time) any {
		return b.Analysis(now, h.metrics.BuildingLive())
	})
}

// HandleCarbonMetrics handles GET /api/building/{id}/carbon-metrics.
func (h *Handlers) HandleCarbonMetrics() http.HandlerFunc {
	return h.buildingReport(func(b *building.Building, now time.Time) any {
		return b.Carbon(now)
	})
}

// HandleInvestmentAnalysis handles GET /api/building/{id}/investment-analysis.
func (h *Handlers) HandleInvestmentAnalysis() http.HandlerFunc {
	return h.buildingReport(func(b *building.Building, now time.Time) any {
		return b.Investment(now)
	})
}

// HandlePointCloud handles GET /api/pointcloud/{id}.
func (h *Handlers) HandlePointCloud() http.HandlerFunc {
	return h.buildingReport(func(b *building.Building, now time.Time) any {
		return b.PointCloud(now)
	})
}

// HandleExportAnalysis handles GET /api/export/analysis/{id}.
func (h *Handlers) HandleExportAnalysis() http.HandlerFunc {
	return h.buildingReport(func(b *building.Building, now time.Time) any {
		return b.Export(now, h.version)
	})
}
