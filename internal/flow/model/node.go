// Package model defines the immutable graph value the engine executes:
// nodes, the four edge kinds, per-node reflection policies, and the mutation
// records that transform one graph into the next.
package model

import (
	"context"

	"github.com/danshapiro/reflow/internal/flow/state"
)

// Reserved sentinel node IDs. They never resolve to executable nodes; the
// compiler wires the start sentinel to the entry node and treats the end
// sentinel as a leaf.
const (
	StartNodeID = "start"
	EndNodeID   = "end"
)

// Node is an opaque unit of work. Inputs lists the state keys that must be
// present before Execute runs; Outputs lists the keys the node promises to
// produce. A node receives a read-only snapshot and returns a delta — it
// never mutates shared state directly.
type Node interface {
	ID() string
	Inputs() []string
	Outputs() []string
	Execute(ctx context.Context, snap *state.Snapshot, ec *ExecContext) (*state.Delta, error)
}

// FuncNode adapts a function to the Node interface. Useful for tests and
// small in-process nodes.
type FuncNode struct {
	NodeID string
	In     []string
	Out    []string
	Fn     func(ctx context.Context, snap *state.Snapshot, ec *ExecContext) (*state.Delta, error)
}

func NewFuncNode(id string, inputs, outputs []string, fn func(ctx context.Context, snap *state.Snapshot, ec *ExecContext) (*state.Delta, error)) *FuncNode {
	return &FuncNode{NodeID: id, In: inputs, Out: outputs, Fn: fn}
}

func (n *FuncNode) ID() string        { return n.NodeID }
func (n *FuncNode) Inputs() []string  { return append([]string{}, n.In...) }
func (n *FuncNode) Outputs() []string { return append([]string{}, n.Out...) }

func (n *FuncNode) Execute(ctx context.Context, snap *state.Snapshot, ec *ExecContext) (*state.Delta, error) {
	if n.Fn == nil {
		return state.NewDelta(), nil
	}
	return n.Fn(ctx, snap, ec)
}
