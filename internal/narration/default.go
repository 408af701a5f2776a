package narration

import "github.com/retrofitforge/twin/internal/model"

// Action tags understood by the bundled frontend.
const (
	ActionFocusBuilding    = "focus-building"
	ActionHighlightMetrics = "highlight-metrics"
	ActionComponentScan    = "animate-component-analysis"
	ActionShowROI          = "show-roi-optimization"
	ActionHighlightSavings = "highlight-savings"
	ActionFinalOverview    = "final-overview"
)

var defaultSteps = []model.NarrationStep{
	{
		SectionID:      1,
		DurationMillis: 8000,
		Action:         ActionFocusBuilding,
		Text:           "Welcome to RetrofitForge-AI's Digital Twin Engine. We're analyzing 22 Bishopsgate, a 278-meter commercial tower in London's financial district.",
	},
	{
		SectionID:      1,
		DurationMillis: 10000,
		Action:         ActionHighlightMetrics,
		Text:           "Our patent-pending STGNN technology processes 2,537 active building models with 96.8% simulation accuracy in just 2.2 seconds.",
	},
	{
		SectionID:      2,
		DurationMillis: 12000,
		Action:         ActionComponentScan,
		Text:           "The SAM-GNN pipeline identifies 1,847 building components across walls, roof, windows, HVAC systems, and floor structures.",
	},
	{
		SectionID:      3,
		DurationMillis: 10000,
		Action:         ActionShowROI,
		Text:           "Our investment optimization engine delivers 34.2% ROI improvement through uncertainty quantification and Bayesian modeling.",
	},
	{
		SectionID:      7,
		DurationMillis: 8000,
		Action:         ActionHighlightSavings,
		Text:           "Real-time analysis reveals annual energy savings of £334,000 and carbon reduction potential of 1,430 tonnes CO2 equivalent.",
	},
	{
		SectionID:      7,
		DurationMillis: 6000,
		Action:         ActionFinalOverview,
		Text:           "This represents the future of building intelligence: scalable, profitable, and essential for the net-zero transition.",
	},
}

// Default returns the built-in investor walkthrough.
func Default() Script {
	return MustBuild(defaultSteps)
}
