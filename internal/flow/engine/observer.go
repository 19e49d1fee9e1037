package engine

import (
	"context"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/reflection"
	"github.com/danshapiro/reflow/internal/flow/route"
)

// Observers are optional callbacks fired at the engine's decision points.
// A visualizer is a pure consumer of these events; nothing an observer does
// affects execution.
type Observers struct {
	OnNodeExecuted    func(nodeID string, deltaKeys []string)
	OnMutationApplied func(m model.Mutation, before, after model.Graph)
	OnRouterDecision  func(nextNodeID string, d route.Decision)
	OnReflection      func(nodeID string, res reflection.Result)
}

func (o Observers) nodeExecuted(nodeID string, deltaKeys []string) {
	if o.OnNodeExecuted != nil {
		o.OnNodeExecuted(nodeID, deltaKeys)
	}
}

func (o Observers) mutationApplied(m model.Mutation, before, after model.Graph) {
	if o.OnMutationApplied != nil {
		o.OnMutationApplied(m, before, after)
	}
}

func (o Observers) routerDecision(nextNodeID string, d route.Decision) {
	if o.OnRouterDecision != nil {
		o.OnRouterDecision(nextNodeID, d)
	}
}

func (o Observers) reflection(nodeID string, res reflection.Result) {
	if o.OnReflection != nil {
		o.OnReflection(nodeID, res)
	}
}

// Interviewer answers ask-user decisions. Implementations block until the
// answer is available (or the context ends).
type Interviewer interface {
	Ask(ctx context.Context, question string) (string, error)
}

// InterviewerFunc adapts a function to the Interviewer interface.
type InterviewerFunc func(ctx context.Context, question string) (string, error)

func (f InterviewerFunc) Ask(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}
