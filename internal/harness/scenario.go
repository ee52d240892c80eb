package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadScenario parses one scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("load scenario %s: missing name", path)
	}
	if sc.Spec == nil {
		return nil, fmt.Errorf("load scenario %s: missing spec", path)
	}
	if sc.Expect.Decision == "" {
		return nil, fmt.Errorf("load scenario %s: missing expected decision", path)
	}
	return &sc, nil
}

// LoadDir loads every *.yaml scenario in a directory, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load scenarios: %w", err)
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		sc, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// SpecJSON converts the scenario's YAML spec body to the JSON the pipeline
// consumes. YAML map keys decode as strings, so the conversion is direct.
func (s *Scenario) SpecJSON() ([]byte, error) {
	data, err := json.Marshal(s.Spec)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: spec to JSON: %w", s.Name, err)
	}
	return data, nil
}

// repetitions returns the number of pipeline evaluations to run.
func (s *Scenario) repetitions() int {
	if s.Repeat > 1 {
		return s.Repeat
	}
	return 1
}
