package synth

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/registry"
	"github.com/danshapiro/reflow/internal/llm"
)

const synthesisPromptTemplate = `Design a task graph for this objective:

%s

Available nodes (use only these ids):
%s
Answer with a single JSON object:
{"entry": "<node>", "nodes": ["..."], "edges": [{"from": "...", "to": "..."} | {"from": "...", "parallel": ["..."]} | {"from": "...", "key": "<state key>", "map": {"<value>": "<node>"}, "fallback": "<node>"}], "reflection": [{"node": "...", "max_retries": 1}], "cost_estimate": <number>}`

// Service asks a completion backend to synthesize a graph for a task.
// Synthesis is strictly best-effort: malformed responses, schema violations,
// and unknown node references all degrade to the provided fallback graph.
type Service struct {
	Completer llm.Completer
	Registry  *registry.Registry
	Logger    zerolog.Logger
}

// Synthesize returns a graph for the task, or the fallback when the service
// is unavailable or its response cannot be used.
func (s *Service) Synthesize(ctx context.Context, task string, fallback model.Graph) model.Graph {
	g, err := s.trySynthesize(ctx, task, "")
	if err != nil {
		s.Logger.Warn().Err(err).Msg("graph synthesis failed; using fallback graph")
		return fallback
	}
	return g
}

// trySynthesize runs one synthesis attempt; extra is appended to the prompt
// (the evolver uses it for past-trace guidance).
func (s *Service) trySynthesize(ctx context.Context, task, extra string) (model.Graph, error) {
	if s.Completer == nil {
		return model.Graph{}, fmt.Errorf("no completion backend configured")
	}
	prompt := fmt.Sprintf(synthesisPromptTemplate, task, s.Registry.Catalog())
	if extra != "" {
		prompt += "\n\n" + extra
	}
	raw, err := s.Completer.Complete(ctx, prompt)
	if err != nil {
		return model.Graph{}, err
	}
	desc, err := Parse(raw)
	if err != nil {
		return model.Graph{}, err
	}
	return Build(desc, s.Registry)
}

// SynthesizeWith is trySynthesize with fallback degradation, for callers
// that augment the prompt.
func (s *Service) SynthesizeWith(ctx context.Context, task, extra string, fallback model.Graph) model.Graph {
	g, err := s.trySynthesize(ctx, task, extra)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("graph synthesis failed; using fallback graph")
		return fallback
	}
	return g
}
