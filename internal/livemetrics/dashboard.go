package livemetrics

import (
	"math"

	"github.com/retrofitforge/twin/internal/building"
	"github.com/retrofitforge/twin/internal/model"
)

// Fixed fields of the dashboard payload.
const (
	ComponentsAnalyzed = 1847
	SystemStatus       = "optimal"
)

// Dashboard shapes the latest snapshot into the live dashboard payload:
// percentages and rates to one decimal, counts to whole numbers, progress
// capped at 100.
func (s *Source) Dashboard() model.LiveMetricsResponse {
	snap := s.SnapshotMap()
	resp := model.LiveMetricsResponse{
		ActiveModels:       roundInt(snap[model.MetricActiveModels].Value),
		Accuracy:           round1(snap[model.MetricAccuracy].Value),
		ProcessingSpeed:    round1(snap[model.MetricProcessingSpeed].Value),
		ComponentsAnalyzed: ComponentsAnalyzed,
		EnergySavings:      roundInt(snap[model.MetricEnergySavings].Value),
		CarbonReduction:    roundInt(snap[model.MetricCarbonReduction].Value),
		ROIImprovement:     round1(snap[model.MetricROIImprovement].Value),
		SystemStatus:       SystemStatus,
		AnalysisProgress:   min(100, roundInt(snap[model.MetricAnalysisProgress].Value)),
	}
	for _, sample := range snap {
		if sample.Timestamp.After(resp.Timestamp) {
			resp.Timestamp = sample.Timestamp
		}
	}
	return resp
}

// BuildingLive folds the latest readings into the building analysis overview.
func (s *Source) BuildingLive() building.Live {
	snap := s.SnapshotMap()
	return building.Live{
		Accuracy:       round1(snap[model.MetricAccuracy].Value),
		ProcessingTime: round1(snap[model.MetricProcessingSpeed].Value),
		ActiveModels:   roundInt(snap[model.MetricActiveModels].Value),
	}
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }

func roundInt(x float64) int { return int(math.Round(x)) }
