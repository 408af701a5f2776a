package narration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrofitforge/twin/internal/model"
)

func TestNewScriptRejectsEmpty(t *testing.T) {
	_, err := NewScript(nil)
	require.ErrorIs(t, err, ErrEmptyScript)
}

func TestNewScriptRejectsGapInIndexes(t *testing.T) {
	_, err := NewScript([]model.NarrationStep{
		{Index: 0, DurationMillis: 100},
		{Index: 2, DurationMillis: 100},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 2")
}

func TestNewScriptRejectsNonPositiveDuration(t *testing.T) {
	for _, d := range []int64{0, -5} {
		_, err := NewScript([]model.NarrationStep{{Index: 0, DurationMillis: d}})
		require.Error(t, err, "duration %d", d)
		assert.Contains(t, err.Error(), "duration_ms")
	}
}

func TestNewScriptCopiesInput(t *testing.T) {
	steps := []model.NarrationStep{{Index: 0, DurationMillis: 100, Text: "a"}}
	s, err := NewScript(steps)
	require.NoError(t, err)

	steps[0].Text = "mutated"
	assert.Equal(t, "a", s.Step(0).Text)

	out := s.Steps()
	out[0].Text = "also mutated"
	assert.Equal(t, "a", s.Step(0).Text)
}

func TestBuildAssignsIndexes(t *testing.T) {
	s, err := Build([]model.NarrationStep{
		{Index: 7, DurationMillis: 100},
		{Index: 7, DurationMillis: 200},
		{DurationMillis: 300},
	})
	require.NoError(t, err)
	for i := range s.Len() {
		assert.Equal(t, i, s.Step(i).Index)
	}
}

func TestTotalDurationAndSections(t *testing.T) {
	s := MustBuild([]model.NarrationStep{
		{SectionID: 1, DurationMillis: 1000},
		{SectionID: 1, DurationMillis: 2000},
		{SectionID: 2, DurationMillis: 1000},
		{SectionID: 1, DurationMillis: 500},
	})
	assert.Equal(t, 4500*time.Millisecond, s.TotalDuration())
	assert.Equal(t, []int{1, 2}, s.Sections())
}

func TestDefaultScript(t *testing.T) {
	s := Default()
	require.Equal(t, 6, s.Len())
	assert.Equal(t, []int{1, 2, 3, 7}, s.Sections())
	assert.Equal(t, 54*time.Second, s.TotalDuration())
	assert.Equal(t, ActionFocusBuilding, s.Step(0).Action)
	assert.Equal(t, ActionFinalOverview, s.Step(5).Action)

	sum := s.Summary()
	assert.Equal(t, 6, sum.Steps)
	assert.Equal(t, int64(54000), sum.TotalDurationMillis)
	assert.Equal(t, []int{1, 2, 3, 7}, sum.Sections)
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
version: "1"
steps:
  - section: 1
    duration_ms: 1000
    action: focus-building
    text: hello
  - section: 2
    duration_ms: 2500
    action: show-roi-optimization
    text: world
`)
	s, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, model.NarrationStep{Index: 1, SectionID: 2, Text: "world", DurationMillis: 2500, Action: "show-roi-optimization"}, s.Step(1))
}

func TestParseYAMLMissingDuration(t *testing.T) {
	_, err := Parse([]byte("steps:\n  - section: 1\n    text: no duration\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration_ms")
}

func TestParseYAMLMalformed(t *testing.T) {
	_, err := Parse([]byte("steps: [oops"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse yaml")
}

func TestMarshalRoundTripThroughFile(t *testing.T) {
	data, err := Marshal(Default())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Steps(), loaded.Steps())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
