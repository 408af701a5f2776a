package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrofitforge/twin/internal/model"
)

func TestValidateInvestorInfo_Empty(t *testing.T) {
	assert.NoError(t, model.ValidateInvestorInfo(nil))
	assert.NoError(t, model.ValidateInvestorInfo(map[string]any{}))
}

func TestValidateInvestorInfo_Small(t *testing.T) {
	info := map[string]any{"name": "Ada", "fund": "Analytical Capital", "ticket": 2_500_000}
	assert.NoError(t, model.ValidateInvestorInfo(info))
}

func TestValidateInvestorInfo_TooLarge(t *testing.T) {
	info := map[string]any{"notes": strings.Repeat("x", model.MaxInvestorInfoBytes)}
	err := model.ValidateInvestorInfo(info)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "investor_info")
}

func TestValidateInvestorInfo_Unmarshalable(t *testing.T) {
	err := model.ValidateInvestorInfo(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestNarrationStepDuration(t *testing.T) {
	s := model.NarrationStep{DurationMillis: 1500}
	assert.Equal(t, 1500*time.Millisecond, s.Duration())
}

func TestPresentationStateActive(t *testing.T) {
	for status, want := range map[model.PresentationStatus]bool{
		model.PresentationIdle:      false,
		model.PresentationRunning:   true,
		model.PresentationPaused:    true,
		model.PresentationCompleted: false,
	} {
		assert.Equal(t, want, model.PresentationState{Status: status}.Active(), string(status))
	}
}
