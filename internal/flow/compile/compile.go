// Package compile turns a graph model into its executable form: node
// execution wrapped with input precondition checks and per-node reflection,
// keyed edges installed as conditional dispatch, and a guaranteed path from
// the start sentinel to the entry node.
package compile

import (
	"context"
	"fmt"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/reflection"
	"github.com/danshapiro/reflow/internal/flow/state"
)

// MissingInputError signals a node was scheduled without a declared
// dependency satisfied. Fatal for the invocation: it means the graph was
// constructed wrong, not that the node failed.
type MissingInputError struct {
	NodeID string
	Key    string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing required input %q for node %s", e.Key, e.NodeID)
}

// Executable is the compiled, runnable form of a graph.
type Executable struct {
	graph model.Graph
	nodes map[string]*execNode
}

type execNode struct {
	node      model.Node
	policy    reflection.Policy
	hasPolicy bool
}

// Compile validates and wires a graph. Edges referencing unknown nodes are
// discarded; duplicate edges (same source and target set) are coalesced
// silently. A missing start→entry path is synthesized. The entry node itself
// must exist.
func Compile(g model.Graph) (*Executable, error) {
	if g.Entry == "" {
		return nil, fmt.Errorf("compile: graph has no entry node")
	}
	if _, ok := g.Nodes[g.Entry]; !ok {
		return nil, fmt.Errorf("compile: entry node %q not present in graph", g.Entry)
	}

	c := g.Clone()
	c.Edges = wireEdges(c)
	x := &Executable{graph: c, nodes: map[string]*execNode{}}
	for id, n := range c.Nodes {
		en := &execNode{node: n}
		if p, ok := c.Reflection[id]; ok {
			en.policy = p
			en.hasPolicy = true
		}
		x.nodes[id] = en
	}
	return x, nil
}

func wireEdges(g model.Graph) []model.Edge {
	var kept []model.Edge
	for _, e := range g.Edges {
		if !g.HasNode(e.From) {
			continue
		}
		if dangling(g, e) {
			continue
		}
		dup := false
		for _, k := range kept {
			if e.SamePair(k) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, e)
		}
	}
	if !reaches(g, kept, model.StartNodeID, g.Entry) {
		kept = append(kept, model.LinearEdge(model.StartNodeID, g.Entry))
	}
	return kept
}

func dangling(g model.Graph, e model.Edge) bool {
	for _, t := range e.AllTargets() {
		if !g.HasNode(t) {
			return true
		}
	}
	return false
}

func reaches(g model.Graph, edges []model.Edge, from, to string) bool {
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			return true
		}
		for _, e := range edges {
			if e.From != cur {
				continue
			}
			for _, t := range e.AllTargets() {
				if !seen[t] {
					seen[t] = true
					queue = append(queue, t)
				}
			}
		}
	}
	return false
}

// Graph returns the wired graph (sentinel path synthesized, edges
// coalesced).
func (x *Executable) Graph() model.Graph { return x.graph }

func (x *Executable) Node(id string) (model.Node, bool) {
	en, ok := x.nodes[id]
	if !ok {
		return nil, false
	}
	return en.node, true
}

// Run executes one node against a snapshot of the state. Every declared
// input key must be present, else a MissingInputError aborts the invocation
// before the node runs.
func (x *Executable) Run(ctx context.Context, id string, st *state.State, ec *model.ExecContext) (*state.Delta, error) {
	en, ok := x.nodes[id]
	if !ok {
		return nil, fmt.Errorf("compile: unknown node %q", id)
	}
	snap := st.Snapshot()
	for _, key := range en.node.Inputs() {
		if !snap.Has(key) {
			return nil, &MissingInputError{NodeID: id, Key: key}
		}
	}
	return en.node.Execute(ctx, snap, ec)
}

// Reflect evaluates the node's attached reflection policy against merged
// state, folding the outcome (action, reason, next-node hint) into the
// state for downstream routing. Nodes without a policy read as success.
func (x *Executable) Reflect(id string, st *state.State) reflection.Result {
	en, ok := x.nodes[id]
	if !ok || !en.hasPolicy {
		return reflection.Success()
	}
	res := reflection.Apply(en.policy, id, st)
	st.SetRaw("reflection."+id+".outcome", string(res.Outcome))
	if res.Reason != "" {
		st.SetRaw("reflection."+id+".reason", res.Reason)
	}
	if res.Target != "" {
		st.SetRaw("reflection."+id+".next", res.Target)
	}
	return res
}

// Successors resolves the runtime successors of a node: linear and parallel
// edges yield their targets; keyed edges look the named state key up in the
// dispatch table, falling back when the value is absent or unmapped.
func (x *Executable) Successors(id string, r state.Reader) []string {
	var out []string
	seen := map[string]bool{}
	add := func(t string) {
		if t != "" && t != model.EndNodeID && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, e := range x.graph.Outgoing(id) {
		switch e.Kind {
		case model.EdgeLinear:
			add(e.To)
		case model.EdgeParallel:
			for _, t := range e.Targets {
				add(t)
			}
		case model.EdgeKeyed, model.EdgeKeyedDynamic:
			add(dispatch(e, r))
		}
	}
	return out
}

func dispatch(e model.Edge, r state.Reader) string {
	raw, ok := r.GetRaw(e.KeyName)
	if !ok {
		return e.Fallback
	}
	if t, ok := e.Mapping[fmt.Sprint(raw)]; ok {
		return t
	}
	return e.Fallback
}

// Order computes the conservative execution order: breadth-first traversal
// from the start sentinel following declared edges, with keyed edges
// expanded to all mapped targets plus fallback. Scheduling is reachability
// analysis — branch selection needs state that does not exist yet.
// ResolvedOrder walks the graph from the entry following runtime
// successors, with keyed edges dispatched against the given state. Unlike
// Order it reports only the branches the state actually selects; run
// summaries and visualizers use it to show the route a finished run took.
func (x *Executable) ResolvedOrder(r state.Reader) []string {
	var order []string
	seen := map[string]bool{}
	queue := []string{x.graph.Entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		order = append(order, cur)
		queue = append(queue, x.Successors(cur, r)...)
	}
	return order
}

func (x *Executable) Order() []string {
	var order []string
	seen := map[string]bool{model.StartNodeID: true, model.EndNodeID: true}
	queue := []string{model.StartNodeID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur != model.StartNodeID {
			order = append(order, cur)
		}
		for _, e := range x.graph.Outgoing(cur) {
			for _, t := range e.AllTargets() {
				if !seen[t] {
					seen[t] = true
					queue = append(queue, t)
				}
			}
		}
	}
	return order
}
