package model

import "time"

// MetricName identifies one of the simulated live dashboard metrics.
type MetricName string

const (
	MetricAccuracy         MetricName = "accuracy"
	MetricProcessingSpeed  MetricName = "processing_speed"
	MetricActiveModels     MetricName = "active_models"
	MetricCarbonReduction  MetricName = "carbon_reduction"
	MetricEnergySavings    MetricName = "energy_savings"
	MetricROIImprovement   MetricName = "roi_improvement"
	MetricAnalysisProgress MetricName = "analysis_progress"
)

// MetricSample is a single simulated reading. Samples are values; holders
// never share or mutate them.
type MetricSample struct {
	Name      MetricName `json:"name"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
}
