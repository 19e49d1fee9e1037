package route

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML shape of a router configuration. Zero-valued fields keep
// the defaults New fills in.
//
//	threshold: 0.6
//	injection_cap: 2
//	cost_aware: true
//	sources:
//	  - {key: "finance.*", node: fetch_finance}
//	dependent_rules:
//	  - {key: "research.*", node: gather_context}
type File struct {
	Threshold      float64   `yaml:"threshold,omitempty"`
	InjectionCap   int       `yaml:"injection_cap,omitempty"`
	CostAware      bool      `yaml:"cost_aware,omitempty"`
	CostMargin     float64   `yaml:"cost_margin,omitempty"`
	Sources        []RuleDef `yaml:"sources,omitempty"`
	DependentRules []RuleDef `yaml:"dependent_rules,omitempty"`
}

// RuleDef binds a watched state-key glob to the registered node that can
// remediate it.
type RuleDef struct {
	Key  string `yaml:"key"`
	Node string `yaml:"node"`
}

// ParseConfig decodes a YAML router configuration.
func ParseConfig(data []byte) (Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("route: %w", err)
	}
	cfg := Config{
		Threshold:    f.Threshold,
		InjectionCap: f.InjectionCap,
		CostAware:    f.CostAware,
		CostMargin:   f.CostMargin,
	}
	for _, s := range f.Sources {
		if s.Key == "" || s.Node == "" {
			return Config{}, fmt.Errorf("route: source requires key and node")
		}
		cfg.Sources = append(cfg.Sources, Source{KeyGlob: s.Key, NodeID: s.Node})
	}
	for _, r := range f.DependentRules {
		if r.Key == "" || r.Node == "" {
			return Config{}, fmt.Errorf("route: dependent rule requires key and node")
		}
		cfg.DependentRules = append(cfg.DependentRules, DependentRule{KeyGlob: r.Key, NodeID: r.Node})
	}
	return cfg, nil
}

// LoadConfig reads a router configuration from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("route: %w", err)
	}
	return ParseConfig(data)
}

// DemoConfig is the configuration used when no file is given: it watches
// the simulated finance source and gathers extra context whenever a
// research result comes back below threshold.
func DemoConfig() Config {
	return Config{
		Sources:        []Source{{KeyGlob: "finance.*", NodeID: "fetch_finance"}},
		DependentRules: []DependentRule{{KeyGlob: "research.*", NodeID: "gather_context"}},
	}
}
