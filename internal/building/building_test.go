package building

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 7, 4, 12, 30, 0, 0, time.UTC)

func TestLookup(t *testing.T) {
	b, err := Lookup(DemoID)
	require.NoError(t, err)
	assert.Equal(t, "22 Bishopsgate", b.Name)

	_, err = Lookup("the-shard")
	require.ErrorIs(t, err, ErrUnknownBuilding)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 41.8, Round1(41.8128))
	assert.Equal(t, 96.9, Round1(96.86))
	assert.Equal(t, -0.3, Round1(-0.26))
}

func TestDerivedCarbonFigures(t *testing.T) {
	r := Demo().Carbon(testNow)
	assert.Equal(t, 1430.0, r.ReductionSummary.AbsoluteReduction)
	assert.Equal(t, 41.8, r.ReductionSummary.PercentageReduction)
	assert.True(t, r.NetZeroPathway.OnTrack)
	assert.Equal(t, "2025-07-04T12:30:00Z", r.Timestamp)
}

func TestDerivedCarbonFollowsInputs(t *testing.T) {
	b := Demo()
	b.Optimized.Total = 3420
	r := b.Carbon(testNow)
	assert.Equal(t, 0.0, r.ReductionSummary.AbsoluteReduction)
	assert.Equal(t, 0.0, r.ReductionSummary.PercentageReduction)
	assert.False(t, r.NetZeroPathway.OnTrack)
}

func TestCompetitiveAdvantage(t *testing.T) {
	r := Demo().Investment(testNow)
	require.NotNil(t, r.Scenarios.Optimized.CompetitiveAdvantage)
	assert.Equal(t, 21.9, *r.Scenarios.Optimized.CompetitiveAdvantage)
	assert.Nil(t, r.Scenarios.TraditionalRetrofit.CompetitiveAdvantage)
	// The catalogue entry itself is not mutated.
	assert.Nil(t, Demo().Scenarios.Optimized.CompetitiveAdvantage)
}

func TestAnalysisUsesLiveReadings(t *testing.T) {
	r := Demo().Analysis(testNow, Live{Accuracy: 96.6789, ProcessingTime: 2.349, ActiveModels: 2540})
	assert.Equal(t, 1847, r.Overview.TotalComponents)
	assert.Equal(t, 96.7, r.Overview.AnalysisAccuracy)
	assert.Equal(t, 2.3, r.Overview.ProcessingTime)
	assert.Equal(t, 2540, r.Overview.ActiveModels)
	assert.Len(t, r.Components, 5)
}

func TestPointCloudTotals(t *testing.T) {
	r := Demo().PointCloud(testNow)
	sum := 0
	for _, c := range r.Components {
		sum += c.PointCount
	}
	assert.Equal(t, r.Metadata.TotalPoints, sum)
	assert.Equal(t, 98.2, r.Components["walls"].Confidence)
}

func TestExportReport(t *testing.T) {
	r := Demo().Export(testNow, "1.2.3")
	assert.Equal(t, "1.2.3", r.Metadata.Version)
	assert.Equal(t, 2400000, r.ExecutiveSummary.TotalInvestmentRequired)
	assert.Equal(t, 1430.0, r.ExecutiveSummary.CarbonReductionAnnual)
	assert.Len(t, r.Recommendations, 4)
}

func TestComponentJSONHidesScanFields(t *testing.T) {
	raw, err := json.Marshal(Demo().Components["walls"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":847,"efficiency":94.2,"condition":"Excellent"}`, string(raw))
}
