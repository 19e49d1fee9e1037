package route

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/registry"
	"github.com/danshapiro/reflow/internal/flow/state"
)

const sampleConfigYAML = `
threshold: 0.7
injection_cap: 3
cost_aware: true
cost_margin: 0.1
sources:
  - {key: "finance.*", node: fetch_finance}
dependent_rules:
  - {key: "research.*", node: gather_context}
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfigYAML))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Threshold != 0.7 || cfg.InjectionCap != 3 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if !cfg.CostAware || cfg.CostMargin != 0.1 {
		t.Fatalf("cost fields: %+v", cfg)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0] != (Source{KeyGlob: "finance.*", NodeID: "fetch_finance"}) {
		t.Fatalf("sources=%v", cfg.Sources)
	}
	if len(cfg.DependentRules) != 1 || cfg.DependentRules[0].NodeID != "gather_context" {
		t.Fatalf("dependent rules=%v", cfg.DependentRules)
	}
}

func TestParseConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"not yaml", `{`},
		{"source missing node", "sources:\n  - {key: \"finance.*\"}"},
		{"rule missing key", "dependent_rules:\n  - {node: gather_context}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tc.yaml)); err == nil {
				t.Fatalf("no error for %q", tc.yaml)
			}
		})
	}
}

func TestParseConfigDefaultsApply(t *testing.T) {
	cfg, err := ParseConfig([]byte(`sources: [{key: "finance.*", node: fetch_finance}]`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	r := New(cfg, fetchRegistry(registry.CostLow))
	if r.Threshold() != 0.6 {
		t.Fatalf("threshold=%v", r.Threshold())
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	if err := os.WriteFile(path, []byte(sampleConfigYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Threshold != 0.7 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("no error for missing file")
	}
}

func TestDemoConfigGathersContext(t *testing.T) {
	reg := fetchRegistry(registry.CostLow)
	reg.Register(registry.Spec{
		ID:      "gather_context",
		Outputs: []string{"context"},
		Factory: func() model.Node { return model.NewFuncNode("gather_context", nil, []string{"context"}, nil) },
	})
	r := New(DemoConfig(), reg)

	next := model.NewFuncNode("report", []string{"research.summary"}, nil, nil)
	st := state.New()
	st.SetRaw("research.summary", "thin")
	st.SetConfidence("research.summary", state.Confidence{Score: 0.3})

	d := r.Route(context.Background(), st, "plan", next)
	if d.Kind != DecisionMutate || d.Mutation.NewNodes[0].ID() != "gather_context" {
		t.Fatalf("decision=%+v", d)
	}
}
