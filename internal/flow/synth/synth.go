// Package synth parses structured graph descriptions returned by the
// natural-language graph-synthesis service and builds executable graph
// models from them. Every failure mode here is recoverable: callers degrade
// to a statically defined fallback graph.
package synth

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/reflection"
	"github.com/danshapiro/reflow/internal/flow/registry"
)

// ParseError marks a malformed or schema-invalid synthesis response.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("synthesis parse: %s: %v", e.Msg, e.Err)
	}
	return "synthesis parse: " + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnknownNodeError marks a synthesized graph referencing a node id absent
// from the registry. The synthesized graph is discarded wholesale.
type UnknownNodeError struct {
	NodeID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("synthesized graph references unknown node %q", e.NodeID)
}

// Description is the structured shape the synthesis service must return.
type Description struct {
	Entry        string           `json:"entry"`
	Nodes        []string         `json:"nodes"`
	Edges        []EdgeSpec       `json:"edges"`
	Reflection   []ReflectionSpec `json:"reflection,omitempty"`
	CostEstimate float64          `json:"cost_estimate,omitempty"`
}

type EdgeSpec struct {
	From     string            `json:"from"`
	To       string            `json:"to,omitempty"`
	Parallel []string          `json:"parallel,omitempty"`
	Key      string            `json:"key,omitempty"`
	Mapping  map[string]string `json:"map,omitempty"`
	Fallback string            `json:"fallback,omitempty"`
}

type ReflectionSpec struct {
	Node       string  `json:"node"`
	MaxRetries int     `json:"max_retries,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
	Escalation string  `json:"escalation,omitempty"`
}

const descriptionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["entry", "nodes", "edges"],
  "properties": {
    "entry": {"type": "string", "minLength": 1},
    "nodes": {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1},
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from"],
        "properties": {
          "from": {"type": "string", "minLength": 1},
          "to": {"type": "string"},
          "parallel": {"type": "array", "items": {"type": "string"}},
          "key": {"type": "string"},
          "map": {"type": "object", "additionalProperties": {"type": "string"}},
          "fallback": {"type": "string"}
        }
      }
    },
    "reflection": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["node"],
        "properties": {
          "node": {"type": "string", "minLength": 1},
          "max_retries": {"type": "integer", "minimum": 0},
          "threshold": {"type": "number", "minimum": 0, "maximum": 1},
          "escalation": {"type": "string"}
        }
      }
    },
    "cost_estimate": {"type": "number", "minimum": 0}
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("description.json", strings.NewReader(descriptionSchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("description.json")
	})
	return schema, schemaErr
}

// Parse extracts the first JSON object from a raw completion (services wrap
// their answer in prose more often than not), validates it against the
// description schema, and decodes it.
func Parse(raw string) (*Description, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, &ParseError{Msg: "no JSON object in response"}
	}
	blob := raw[start : end+1]

	var doc any
	if err := json.Unmarshal([]byte(blob), &doc); err != nil {
		return nil, &ParseError{Msg: "invalid JSON", Err: err}
	}
	s, err := compiledSchema()
	if err != nil {
		return nil, &ParseError{Msg: "schema compile", Err: err}
	}
	if err := s.Validate(doc); err != nil {
		return nil, &ParseError{Msg: "schema validation", Err: err}
	}
	var desc Description
	if err := json.Unmarshal([]byte(blob), &desc); err != nil {
		return nil, &ParseError{Msg: "decode", Err: err}
	}
	return &desc, nil
}

const defaultReflectionThreshold = 0.5

// Build instantiates a graph from a description against the registry. Any
// node id missing from the registry fails the whole build; callers discard
// the synthesized graph and use their fallback.
func Build(desc *Description, reg *registry.Registry) (model.Graph, error) {
	nodes := make([]model.Node, 0, len(desc.Nodes))
	specs := map[string]registry.Spec{}
	for _, id := range desc.Nodes {
		spec, ok := reg.Lookup(id)
		if !ok {
			return model.Graph{}, &UnknownNodeError{NodeID: id}
		}
		specs[id] = spec
		nodes = append(nodes, spec.Factory())
	}

	edges := make([]model.Edge, 0, len(desc.Edges))
	for _, e := range desc.Edges {
		switch {
		case e.Key != "":
			edges = append(edges, model.KeyedDynamicEdge(e.From, e.Key, e.Mapping, e.Fallback))
		case len(e.Parallel) > 0:
			edges = append(edges, model.ParallelEdge(e.From, e.Parallel...))
		default:
			edges = append(edges, model.LinearEdge(e.From, e.To))
		}
	}

	g := model.NewGraph(desc.Entry, nodes, edges)
	for _, r := range desc.Reflection {
		spec, ok := specs[r.Node]
		if !ok {
			return model.Graph{}, &UnknownNodeError{NodeID: r.Node}
		}
		threshold := r.Threshold
		if threshold <= 0 {
			threshold = defaultReflectionThreshold
		}
		g.Reflection[r.Node] = reflection.OutputCheck(
			r.Node, spec.Outputs, threshold, r.MaxRetries, reflection.Strategy(r.Escalation))
	}
	return g, nil
}
