package narration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/retrofitforge/twin/internal/model"
)

// scriptFile is the on-disk YAML layout:
//
//	version: "1"
//	steps:
//	  - section: 1
//	    duration_ms: 8000
//	    action: focus-building
//	    text: Welcome...
type scriptFile struct {
	Version string     `yaml:"version"`
	Steps   []stepFile `yaml:"steps"`
}

type stepFile struct {
	Section    int    `yaml:"section"`
	Text       string `yaml:"text"`
	DurationMS int64  `yaml:"duration_ms"`
	Action     string `yaml:"action"`
}

// Parse decodes a YAML script. Step indexes come from list order.
func Parse(data []byte) (Script, error) {
	var f scriptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Script{}, fmt.Errorf("narration: parse yaml: %w", err)
	}
	steps := make([]model.NarrationStep, len(f.Steps))
	for i, s := range f.Steps {
		steps[i] = model.NarrationStep{
			SectionID:      s.Section,
			Text:           s.Text,
			DurationMillis: s.DurationMS,
			Action:         s.Action,
		}
	}
	return Build(steps)
}

// LoadFile reads and parses a YAML script from path.
func LoadFile(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("narration: read %s: %w", path, err)
	}
	return Parse(data)
}

// Marshal encodes a script in the same layout Parse accepts.
func Marshal(s Script) ([]byte, error) {
	f := scriptFile{Version: "1", Steps: make([]stepFile, s.Len())}
	for i, st := range s.steps {
		f.Steps[i] = stepFile{
			Section:    st.SectionID,
			Text:       st.Text,
			DurationMS: st.DurationMillis,
			Action:     st.Action,
		}
	}
	return yaml.Marshal(f)
}
