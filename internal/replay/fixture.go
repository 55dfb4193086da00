package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/sproto/internal/extractor"
)

// #region fixture-types

// Fixture is the top-level JSON structure for an extractor replay fixture:
// recorded raw backend outputs and the variants they are expected to yield.
type Fixture struct {
	Description string        `json:"description"`
	Profile     string        `json:"profile"`
	EchoMarker  string        `json:"echo_marker"`
	Cases       []FixtureCase `json:"cases"`
}

// FixtureCase is one generation: every raw output the backend returned for
// it, in call order, and the expected deduplicated variants.
type FixtureCase struct {
	Name     string   `json:"name"`
	Raw      []string `json:"raw"`
	Expected []string `json:"expected"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("fixture %s: no cases", path)
	}
	return &f, nil
}

// ToProfile resolves the fixture's profile name; empty means chat.
func (f *Fixture) ToProfile() (extractor.Profile, error) {
	p, err := extractor.ProfileByName(f.Profile)
	if err != nil {
		return extractor.Profile{}, fmt.Errorf("fixture profile: %w", err)
	}
	return p, nil
}

// #endregion fixture-loader
