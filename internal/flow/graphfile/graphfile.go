// Package graphfile loads declarative YAML graph definitions and resolves
// them against a node registry. Files reference state keys by untyped name,
// so keyed edges always load as keyed-dynamic.
package graphfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/reflection"
	"github.com/danshapiro/reflow/internal/flow/registry"
)

// File is the YAML shape of a graph definition.
//
//	entry: plan
//	nodes: [plan, fetch_calendar, summarize]
//	edges:
//	  - {from: plan, to: fetch_calendar}
//	  - {from: fetch_calendar, parallel: [summarize, archive]}
//	  - {from: plan, key: plan.route, map: {deep: research}, fallback: summarize}
//	reflection:
//	  plan: {max_retries: 2, threshold: 0.5, escalation: ask_user}
type File struct {
	Entry      string                   `yaml:"entry"`
	Nodes      []string                 `yaml:"nodes"`
	Edges      []EdgeDef                `yaml:"edges"`
	Reflection map[string]ReflectionDef `yaml:"reflection,omitempty"`
}

type EdgeDef struct {
	From     string            `yaml:"from"`
	To       string            `yaml:"to,omitempty"`
	Parallel []string          `yaml:"parallel,omitempty"`
	Key      string            `yaml:"key,omitempty"`
	Map      map[string]string `yaml:"map,omitempty"`
	Fallback string            `yaml:"fallback,omitempty"`
}

type ReflectionDef struct {
	MaxRetries int     `yaml:"max_retries,omitempty"`
	Threshold  float64 `yaml:"threshold,omitempty"`
	Escalation string  `yaml:"escalation,omitempty"`
}

const defaultReflectionThreshold = 0.5

// Parse decodes a YAML definition and builds the graph against the
// registry. Unknown node ids fail the load.
func Parse(data []byte, reg *registry.Registry) (model.Graph, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return model.Graph{}, fmt.Errorf("graphfile: %w", err)
	}
	if f.Entry == "" {
		return model.Graph{}, fmt.Errorf("graphfile: entry is required")
	}

	nodes := make([]model.Node, 0, len(f.Nodes))
	specs := map[string]registry.Spec{}
	for _, id := range f.Nodes {
		spec, ok := reg.Lookup(id)
		if !ok {
			return model.Graph{}, fmt.Errorf("graphfile: unknown node %q", id)
		}
		specs[id] = spec
		nodes = append(nodes, spec.Factory())
	}

	edges := make([]model.Edge, 0, len(f.Edges))
	for _, e := range f.Edges {
		switch {
		case e.Key != "":
			edges = append(edges, model.KeyedDynamicEdge(e.From, e.Key, e.Map, e.Fallback))
		case len(e.Parallel) > 0:
			edges = append(edges, model.ParallelEdge(e.From, e.Parallel...))
		case e.To != "":
			edges = append(edges, model.LinearEdge(e.From, e.To))
		default:
			return model.Graph{}, fmt.Errorf("graphfile: edge from %q has no target", e.From)
		}
	}

	g := model.NewGraph(f.Entry, nodes, edges)
	for id, def := range f.Reflection {
		spec, ok := specs[id]
		if !ok {
			return model.Graph{}, fmt.Errorf("graphfile: reflection on unknown node %q", id)
		}
		threshold := def.Threshold
		if threshold <= 0 {
			threshold = defaultReflectionThreshold
		}
		g.Reflection[id] = reflection.OutputCheck(
			id, spec.Outputs, threshold, def.MaxRetries, reflection.Strategy(def.Escalation))
	}
	return g, nil
}

// Load reads and parses a definition file.
func Load(path string, reg *registry.Registry) (model.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Graph{}, fmt.Errorf("graphfile: %w", err)
	}
	return Parse(data, reg)
}
