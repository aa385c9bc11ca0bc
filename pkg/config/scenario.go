package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScenarioSegment is one leg of a simulated flight.
type ScenarioSegment struct {
	Name     string   `yaml:"name"`
	Duration Duration `yaml:"duration"`
	Rate     float64  `yaml:"rate"` // m/s
}

// LoadScenario loads a mock flight scenario from a YAML list of segments.
func LoadScenario(path string) ([]ScenarioSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var segments []ScenarioSegment
	if err := yaml.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("scenario %s has no segments", path)
	}

	for i, s := range segments {
		if s.Duration <= 0 {
			return nil, fmt.Errorf("invalid scenario segment %d '%s': duration must be positive", i, s.Name)
		}
	}
	return segments, nil
}
