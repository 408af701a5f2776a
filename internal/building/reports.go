package building

import "time"

// Live carries the jittered readings folded into the analysis report.
type Live struct {
	Accuracy       float64
	ProcessingTime float64
	ActiveModels   int
}

type InfoReport struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Location       string         `json:"location"`
	Coordinates    Coordinates    `json:"coordinates"`
	Specifications Specifications `json:"specifications"`
	Certifications []string       `json:"certifications"`
	LastUpdated    string         `json:"last_updated"`
}

func (b *Building) Info(now time.Time) InfoReport {
	return InfoReport{
		ID:             b.ID,
		Name:           b.Name,
		Location:       b.Location,
		Coordinates:    b.Coordinates,
		Specifications: b.Specifications,
		Certifications: append([]string(nil), b.Certifications...),
		LastUpdated:    stamp(now),
	}
}

type AnalysisOverview struct {
	TotalComponents  int     `json:"total_components"`
	AnalysisAccuracy float64 `json:"analysis_accuracy"`
	ProcessingTime   float64 `json:"processing_time"`
	ConfidenceLevel  float64 `json:"confidence_level"`
	ActiveModels     int     `json:"active_models"`
}

type ModelMetrics struct {
	PatentStatus        string `json:"patent_status"`
	TechnologyReadiness int    `json:"technology_readiness"`
	ValidationProjects  int    `json:"validation_projects"`
	MarketAdvantage     string `json:"market_advantage"`
}

type AnalysisReport struct {
	BuildingID string               `json:"building_id"`
	Timestamp  string               `json:"timestamp"`
	Overview   AnalysisOverview     `json:"overview"`
	Components map[string]Component `json:"components"`
	Model      ModelMetrics         `json:"stgnn_metrics"`
}

// Analysis combines the static component survey with live readings.
func (b *Building) Analysis(now time.Time, live Live) AnalysisReport {
	components := make(map[string]Component, len(b.Components))
	for k, v := range b.Components {
		components[k] = v
	}
	return AnalysisReport{
		BuildingID: b.ID,
		Timestamp:  stamp(now),
		Overview: AnalysisOverview{
			TotalComponents:  b.TotalComponents(),
			AnalysisAccuracy: Round1(live.Accuracy),
			ProcessingTime:   Round1(live.ProcessingTime),
			ConfidenceLevel:  95.0,
			ActiveModels:     live.ActiveModels,
		},
		Components: components,
		Model: ModelMetrics{
			PatentStatus:        "Patent Pending",
			TechnologyReadiness: 9,
			ValidationProjects:  127,
			MarketAdvantage:     "Leading",
		},
	}
}

type ReductionSummary struct {
	AbsoluteReduction      float64 `json:"absolute_reduction"`
	PercentageReduction    float64 `json:"percentage_reduction"`
	AnnualSavings          int     `json:"annual_savings"`
	CarbonCreditsGenerated int     `json:"carbon_credits_generated"`
}

type NetZeroPathway struct {
	TargetYear      int     `json:"target_year"`
	CurrentProgress float64 `json:"current_progress"`
	OnTrack         bool    `json:"on_track"`
}

type ESGMetrics struct {
	OverallScore  float64 `json:"overall_score"`
	Environmental float64 `json:"environmental"`
	Social        float64 `json:"social"`
	Governance    float64 `json:"governance"`
}

type CarbonReport struct {
	BuildingID         string           `json:"building_id"`
	Timestamp          string           `json:"timestamp"`
	BaselineEmissions  Emissions        `json:"baseline_emissions"`
	OptimizedEmissions Emissions        `json:"optimized_emissions"`
	ReductionSummary   ReductionSummary `json:"reduction_summary"`
	NetZeroPathway     NetZeroPathway   `json:"net_zero_pathway"`
	ESG                ESGMetrics       `json:"esg_metrics"`
}

func (b *Building) Carbon(now time.Time) CarbonReport {
	pct := b.PercentageReduction()
	return CarbonReport{
		BuildingID:         b.ID,
		Timestamp:          stamp(now),
		BaselineEmissions:  b.Baseline,
		OptimizedEmissions: b.Optimized,
		ReductionSummary: ReductionSummary{
			AbsoluteReduction:      b.AbsoluteReduction(),
			PercentageReduction:    pct,
			AnnualSavings:          b.AnnualSavings,
			CarbonCreditsGenerated: b.CarbonCredits,
		},
		NetZeroPathway: NetZeroPathway{TargetYear: 2030, CurrentProgress: Round1(pct), OnTrack: pct >= 40},
		ESG:            ESGMetrics{OverallScore: 93.6, Environmental: 94.2, Social: 91.8, Governance: 95.1},
	}
}

type FinancialProjections struct {
	NPV10Year         int     `json:"npv_10_year"`
	IRR               float64 `json:"irr"`
	TotalSavings10Yr  int     `json:"total_savings_10yr"`
	CarbonCreditValue int     `json:"carbon_credit_value"`
}

type RiskAnalysis struct {
	ProbabilityPositiveROI float64        `json:"probability_positive_roi"`
	SensitivityFactors     map[string]int `json:"sensitivity_factors"`
}

type InvestmentReport struct {
	BuildingID           string               `json:"building_id"`
	AnalysisDate         string               `json:"analysis_date"`
	Scenarios            Scenarios            `json:"investment_scenarios"`
	FinancialProjections FinancialProjections `json:"financial_projections"`
	RiskAnalysis         RiskAnalysis         `json:"risk_analysis"`
}

func (b *Building) Investment(now time.Time) InvestmentReport {
	scenarios := b.Scenarios
	adv := b.CompetitiveAdvantage()
	scenarios.Optimized.CompetitiveAdvantage = &adv
	return InvestmentReport{
		BuildingID:   b.ID,
		AnalysisDate: stamp(now),
		Scenarios:    scenarios,
		FinancialProjections: FinancialProjections{
			NPV10Year:         3400000,
			IRR:               28.5,
			TotalSavings10Yr:  4000000,
			CarbonCreditValue: 71995,
		},
		RiskAnalysis: RiskAnalysis{
			ProbabilityPositiveROI: 94.7,
			SensitivityFactors: map[string]int{
				"energy_price_volatility": 15,
				"technology_performance":  8,
				"regulatory_changes":      12,
			},
		},
	}
}

type PointCloudMetadata struct {
	BuildingID     string  `json:"building_id"`
	AnalysisDate   string  `json:"analysis_date"`
	TotalPoints    int     `json:"total_points"`
	Accuracy       float64 `json:"accuracy"`
	ProcessingTime float64 `json:"processing_time"`
}

type PointCloudComponent struct {
	PointCount int     `json:"point_count"`
	Confidence float64 `json:"confidence"`
}

type PointCloudReport struct {
	Metadata   PointCloudMetadata             `json:"metadata"`
	Components map[string]PointCloudComponent `json:"components"`
}

func (b *Building) PointCloud(now time.Time) PointCloudReport {
	components := make(map[string]PointCloudComponent, len(b.Components))
	for k, v := range b.Components {
		components[k] = PointCloudComponent{PointCount: v.PointCount, Confidence: v.Confidence}
	}
	return PointCloudReport{
		Metadata: PointCloudMetadata{
			BuildingID:     b.ID,
			AnalysisDate:   stamp(now),
			TotalPoints:    b.TotalPoints,
			Accuracy:       96.8,
			ProcessingTime: 2.2,
		},
		Components: components,
	}
}

type ReportMetadata struct {
	BuildingID    string `json:"building_id"`
	BuildingName  string `json:"building_name"`
	GeneratedDate string `json:"generated_date"`
	ReportType    string `json:"report_type"`
	Version       string `json:"version"`
}

type ExecutiveSummary struct {
	TotalInvestmentRequired int     `json:"total_investment_required"`
	AnnualEnergySavings     int     `json:"annual_energy_savings"`
	CarbonReductionAnnual   float64 `json:"carbon_reduction_annual"`
	ROIImprovement          float64 `json:"roi_improvement"`
	PaybackPeriod           float64 `json:"payback_period"`
	ConfidenceLevel         float64 `json:"confidence_level"`
}

type ExportReport struct {
	Metadata         ReportMetadata   `json:"report_metadata"`
	ExecutiveSummary ExecutiveSummary `json:"executive_summary"`
	Recommendations  []string         `json:"recommendations"`
}

// Export builds the downloadable analysis report. version is the server
// build version stamped into the metadata.
func (b *Building) Export(now time.Time, version string) ExportReport {
	opt := b.Scenarios.Optimized
	return ExportReport{
		Metadata: ReportMetadata{
			BuildingID:    b.ID,
			BuildingName:  b.Name,
			GeneratedDate: stamp(now),
			ReportType:    "Comprehensive Digital Twin Analysis",
			Version:       version,
		},
		ExecutiveSummary: ExecutiveSummary{
			TotalInvestmentRequired: opt.CapexRequired,
			AnnualEnergySavings:     opt.AnnualSavings,
			CarbonReductionAnnual:   b.AbsoluteReduction(),
			ROIImprovement:          opt.ROI,
			PaybackPeriod:           opt.PaybackPeriod,
			ConfidenceLevel:         95.0,
		},
		Recommendations: append([]string(nil), b.Recommendations...),
	}
}
