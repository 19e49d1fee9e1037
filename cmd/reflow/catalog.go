package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danshapiro/reflow/internal/flow/registry"
)

// catalogEntry describes one simulated node in a catalog file. Real domain
// nodes register programmatically; the CLI only ever dry-runs.
type catalogEntry struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Inputs      []string `yaml:"inputs"`
	Outputs     []string `yaml:"outputs"`
	Cost        string   `yaml:"cost"`
	LatencyMS   int      `yaml:"latency_ms"`
	Confidence  float64  `yaml:"confidence"`
}

func loadCatalog(path string) (*registry.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	var entries []catalogEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	reg := registry.New()
	for _, e := range entries {
		confidence := e.Confidence
		if confidence <= 0 {
			confidence = 1.0
		}
		spec := registry.Spec{
			ID:          e.ID,
			Description: e.Description,
			Inputs:      e.Inputs,
			Outputs:     e.Outputs,
			Cost:        registry.CostClass(e.Cost),
			Latency:     time.Duration(e.LatencyMS) * time.Millisecond,
		}
		if err := reg.Register(registry.Simulated(spec, confidence)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
