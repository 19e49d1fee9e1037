package model

import (
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/danshapiro/reflow/internal/flow/reflection"
)

// Graph is an immutable description of a task graph. Treat the maps as
// frozen once the graph is handed to the compiler or engine; mutation
// operations clone before changing anything.
type Graph struct {
	Nodes      map[string]Node
	Edges      []Edge
	Reflection map[string]reflection.Policy
	Entry      string
}

func NewGraph(entry string, nodes []Node, edges []Edge) Graph {
	g := Graph{
		Nodes:      make(map[string]Node, len(nodes)),
		Edges:      append([]Edge{}, edges...),
		Reflection: map[string]reflection.Policy{},
		Entry:      entry,
	}
	for _, n := range nodes {
		if n != nil {
			g.Nodes[n.ID()] = n
		}
	}
	return g
}

// WithReflection returns a copy of the graph with a reflection policy
// attached to the node.
func (g Graph) WithReflection(nodeID string, p reflection.Policy) Graph {
	c := g.Clone()
	c.Reflection[nodeID] = p
	return c
}

func (g Graph) HasNode(id string) bool {
	if id == StartNodeID || id == EndNodeID {
		return true
	}
	_, ok := g.Nodes[id]
	return ok
}

// NodeIDs returns the node IDs sorted, for deterministic iteration.
func (g Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Outgoing returns the edges whose source is the given node, in declaration
// order.
func (g Graph) Outgoing(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// Clone deep-copies the graph's structure. Node implementations are shared;
// they are opaque units of work, not structure.
func (g Graph) Clone() Graph {
	c := Graph{
		Nodes:      make(map[string]Node, len(g.Nodes)),
		Edges:      make([]Edge, 0, len(g.Edges)),
		Reflection: make(map[string]reflection.Policy, len(g.Reflection)),
		Entry:      g.Entry,
	}
	for id, n := range g.Nodes {
		c.Nodes[id] = n
	}
	for _, e := range g.Edges {
		c.Edges = append(c.Edges, e.clone())
	}
	for id, p := range g.Reflection {
		c.Reflection[id] = p
	}
	return c
}

// Fingerprint hashes the graph's structure (nodes, edges, entry). Two graphs
// with identical topology share a fingerprint regardless of node behavior.
func (g Graph) Fingerprint() string {
	h := blake3.New()
	fmt.Fprintf(h, "entry=%s\n", g.Entry)
	for _, id := range g.NodeIDs() {
		fmt.Fprintf(h, "node=%s\n", id)
	}
	for _, e := range g.Edges {
		fmt.Fprintf(h, "edge=%s from=%s to=%s targets=%v key=%s fallback=%s map=", e.Kind, e.From, e.To, e.Targets, e.KeyName, e.Fallback)
		vals := make([]string, 0, len(e.Mapping))
		for v := range e.Mapping {
			vals = append(vals, v)
		}
		sort.Strings(vals)
		for _, v := range vals {
			fmt.Fprintf(h, "%s->%s,", v, e.Mapping[v])
		}
		fmt.Fprintln(h)
	}
	sum := h.Sum(nil)
	return fmt.Sprintf("%x", sum[:16])
}
