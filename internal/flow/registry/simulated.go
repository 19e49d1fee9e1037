package registry

import (
	"context"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/state"
)

// SimulatedNode produces its declared outputs with a fixed value and
// confidence, so graphs can be dry-run without real domain nodes.
type SimulatedNode struct {
	Spec       Spec
	Value      any
	Confidence float64
}

// Simulated wraps a spec so its factory yields simulated nodes. The returned
// spec is suitable for Register.
func Simulated(spec Spec, confidence float64) Spec {
	s := spec
	s.Factory = func() model.Node {
		return &SimulatedNode{Spec: spec, Value: "simulated:" + spec.ID, Confidence: confidence}
	}
	return s
}

func (n *SimulatedNode) ID() string        { return n.Spec.ID }
func (n *SimulatedNode) Inputs() []string  { return append([]string{}, n.Spec.Inputs...) }
func (n *SimulatedNode) Outputs() []string { return append([]string{}, n.Spec.Outputs...) }

func (n *SimulatedNode) Execute(_ context.Context, _ *state.Snapshot, _ *model.ExecContext) (*state.Delta, error) {
	d := state.NewDelta()
	for _, out := range n.Spec.Outputs {
		d.PutRaw(out, n.Value)
		d.Annotate(out, state.Confidence{
			Score:   n.Confidence,
			Reason:  "simulated output",
			Sources: []string{n.Spec.ID},
		})
	}
	return d, nil
}
