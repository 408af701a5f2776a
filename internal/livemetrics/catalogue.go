package livemetrics

import "github.com/retrofitforge/twin/internal/model"

// Spec describes one jittered metric: samples fall uniformly within
// Baseline ± Spread.
type Spec struct {
	Name     model.MetricName `json:"name"`
	Baseline float64          `json:"baseline"`
	Spread   float64          `json:"spread"`
}

// DefaultCatalogue returns the dashboard metrics shown during the demo.
func DefaultCatalogue() []Spec {
	return []Spec{
		{Name: model.MetricAccuracy, Baseline: 96.8, Spread: 0.3},
		{Name: model.MetricProcessingSpeed, Baseline: 2.2, Spread: 0.2},
		{Name: model.MetricActiveModels, Baseline: 2537, Spread: 10},
		{Name: model.MetricCarbonReduction, Baseline: 1430, Spread: 35},
		{Name: model.MetricEnergySavings, Baseline: 334000, Spread: 7500},
		{Name: model.MetricROIImprovement, Baseline: 34.2, Spread: 0.8},
		{Name: model.MetricAnalysisProgress, Baseline: 96, Spread: 4},
	}
}
