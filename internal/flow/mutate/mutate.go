// Package mutate implements the three structural graph mutations as pure
// Graph→Graph transformations. The executor holds a single binding to the
// current graph and reassigns it after each application, so a run can
// snapshot before/after topologies and the mutation log reconstructs the
// full history.
package mutate

import (
	"github.com/danshapiro/reflow/internal/flow/model"
)

// Apply transforms the graph per the mutation record. It is total: a record
// referencing nodes absent from the graph returns the input unchanged rather
// than producing dangling edges. It never executes nodes.
func Apply(g model.Graph, m model.Mutation) model.Graph {
	switch m.Kind {
	case model.MutationInject:
		return applyInject(g, m)
	case model.MutationPrune:
		return applyPrune(g, m)
	case model.MutationReroute:
		return applyReroute(g, m)
	default:
		return g
	}
}

// applyInject splices the new nodes into a linear chain immediately after
// the anchor. The anchor's previous outgoing edges are re-sourced from the
// end of the injected chain, so A→B under inject(A, [N1,N2]) becomes
// A→N1→N2→B. An anchor with no outgoing edges grows a fresh chain.
func applyInject(g model.Graph, m model.Mutation) model.Graph {
	nodes := make([]model.Node, 0, len(m.NewNodes))
	for _, n := range m.NewNodes {
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 0 || !g.HasNode(m.After) {
		return g
	}

	c := g.Clone()
	for _, n := range nodes {
		c.Nodes[n.ID()] = n
	}
	last := nodes[len(nodes)-1].ID()

	edges := make([]model.Edge, 0, len(c.Edges)+len(nodes))
	for _, e := range c.Edges {
		if e.From == m.After {
			e.From = last
		}
		edges = append(edges, e)
	}
	prev := m.After
	for _, n := range nodes {
		edges = append(edges, model.LinearEdge(prev, n.ID()))
		prev = n.ID()
	}
	c.Edges = edges
	return c
}

// applyPrune removes the named nodes and every edge that mentions them:
// edges with a pruned source, destination, or fallback are dropped whole;
// pruned parallel targets and keyed mapping entries are filtered out, and
// an edge left with nothing to reach is dropped.
func applyPrune(g model.Graph, m model.Mutation) model.Graph {
	doomed := map[string]bool{}
	for _, id := range m.NodeIDs {
		doomed[id] = true
	}
	if len(doomed) == 0 {
		return g
	}

	c := g.Clone()
	for id := range doomed {
		delete(c.Nodes, id)
		delete(c.Reflection, id)
	}

	edges := make([]model.Edge, 0, len(c.Edges))
	for _, e := range c.Edges {
		if doomed[e.From] || doomed[e.To] || doomed[e.Fallback] {
			continue
		}
		switch e.Kind {
		case model.EdgeParallel:
			kept := e.Targets[:0]
			for _, t := range e.Targets {
				if !doomed[t] {
					kept = append(kept, t)
				}
			}
			e.Targets = kept
			if len(e.Targets) == 0 {
				continue
			}
		case model.EdgeKeyed, model.EdgeKeyedDynamic:
			for v, t := range e.Mapping {
				if doomed[t] {
					delete(e.Mapping, v)
				}
			}
			if len(e.Mapping) == 0 && e.Fallback == "" {
				continue
			}
		}
		edges = append(edges, e)
	}
	c.Edges = edges
	return c
}

// applyReroute drops every outgoing edge of the source node and installs a
// single linear edge to the new target.
func applyReroute(g model.Graph, m model.Mutation) model.Graph {
	if !g.HasNode(m.From) || !g.HasNode(m.To) {
		return g
	}
	c := g.Clone()
	edges := make([]model.Edge, 0, len(c.Edges)+1)
	for _, e := range c.Edges {
		if e.From == m.From {
			continue
		}
		edges = append(edges, e)
	}
	edges = append(edges, model.LinearEdge(m.From, m.To))
	c.Edges = edges
	return c
}
