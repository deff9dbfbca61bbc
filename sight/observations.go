package sight

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ObservationSet is the on-disk and over-the-wire observation document
type ObservationSet struct {
	Table        string        `json:"table,omitempty" yaml:"table,omitempty"`
	Observations []Observation `json:"observations" yaml:"observations"`
}

// EstimateRequest asks for one estimate over an observation set
type EstimateRequest struct {
	Strategy       Strategy      `json:"strategy,omitempty"`
	IncludeInliers bool          `json:"includeInliers,omitempty"`
	Observations   []Observation `json:"observations"`
}

// LoadObservations reads an observation set from a YAML or JSON file
func LoadObservations(path string) (*ObservationSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading observations file: %w", err)
	}
	return ParseObservations(data)
}

// ParseObservations decodes an observation set. YAML is a superset of JSON,
// so both encodings are accepted.
func ParseObservations(data []byte) (*ObservationSet, error) {
	var set ObservationSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing observations: %w", err)
	}
	if len(set.Observations) == 0 {
		return nil, fmt.Errorf("parsing observations: %w", ErrNoObservations)
	}
	return &set, nil
}

// ParseEstimateRequest decodes and validates a JSON estimate request.
// An empty strategy is resolved to DefaultStrategy.
func ParseEstimateRequest(data []byte) (*EstimateRequest, error) {
	return parseEstimateRequest(data, DefaultStrategy)
}

func parseEstimateRequest(data []byte, fallback Strategy) (*EstimateRequest, error) {
	var req EstimateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decoding estimate request: %w", err)
	}
	if len(req.Observations) == 0 {
		return nil, fmt.Errorf("estimate request: %w", ErrNoObservations)
	}
	if req.Strategy == "" {
		req.Strategy = fallback
	}
	strategy, err := ParseStrategy(string(req.Strategy))
	if err != nil {
		return nil, fmt.Errorf("estimate request: %w", err)
	}
	req.Strategy = strategy
	return &req, nil
}
