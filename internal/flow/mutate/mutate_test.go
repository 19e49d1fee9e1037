package mutate

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/reflection"
)

func node(id string) model.Node {
	return model.NewFuncNode(id, nil, nil, nil)
}

func edgeSet(g model.Graph) map[string]bool {
	out := map[string]bool{}
	for _, e := range g.Edges {
		out[fmt.Sprintf("%s->%s", e.From, e.To)] = true
	}
	return out
}

func TestInjectSplicesChain(t *testing.T) {
	g := model.NewGraph("a", []model.Node{node("a"), node("b")}, []model.Edge{
		model.LinearEdge("a", "b"),
	})

	got := Apply(g, model.Inject("a", []model.Node{node("n1"), node("n2")}, "more detail needed"))

	es := edgeSet(got)
	for _, want := range []string{"a->n1", "n1->n2", "n2->b"} {
		if !es[want] {
			t.Fatalf("missing edge %s; have %v", want, es)
		}
	}
	if es["a->b"] {
		t.Fatalf("original a->b edge should be replaced; have %v", es)
	}
	if !got.HasNode("n1") || !got.HasNode("n2") {
		t.Fatalf("injected nodes missing from graph")
	}
	// Input graph untouched.
	if len(g.Edges) != 1 || g.Edges[0].To != "b" {
		t.Fatalf("input graph mutated: %v", g.Edges)
	}
}

func TestInjectResourcesAllOutgoing(t *testing.T) {
	g := model.NewGraph("a", []model.Node{node("a"), node("b"), node("c")}, []model.Edge{
		model.LinearEdge("a", "b"),
		model.KeyedDynamicEdge("a", "route", map[string]string{"x": "c"}, "b"),
	})

	got := Apply(g, model.Inject("a", []model.Node{node("n")}, ""))

	for _, e := range got.Edges {
		if e.From == "a" && e.To != "n" {
			t.Fatalf("anchor kept an outgoing edge past the chain: %+v", e)
		}
	}
	var keyed int
	for _, e := range got.Edges {
		if e.Kind == model.EdgeKeyedDynamic {
			keyed++
			if e.From != "n" {
				t.Fatalf("keyed edge not re-sourced: %+v", e)
			}
		}
	}
	if keyed != 1 {
		t.Fatalf("keyed edge count=%d", keyed)
	}
}

func TestInjectUnknownAnchorNoop(t *testing.T) {
	g := model.NewGraph("a", []model.Node{node("a")}, nil)
	got := Apply(g, model.Inject("ghost", []model.Node{node("n")}, ""))
	if got.HasNode("n") {
		t.Fatalf("inject with unknown anchor should leave the graph unchanged")
	}
}

func TestPruneRemovesEveryMention(t *testing.T) {
	g := model.NewGraph("a",
		[]model.Node{node("a"), node("b"), node("x"), node("c")},
		[]model.Edge{
			model.LinearEdge("a", "x"),
			model.LinearEdge("x", "b"),
			model.ParallelEdge("a", "b", "x", "c"),
			model.KeyedDynamicEdge("b", "route", map[string]string{"slow": "x", "fast": "c"}, "c"),
			model.KeyedDynamicEdge("c", "route", map[string]string{"v": "b"}, "x"),
		})

	got := Apply(g, model.Prune([]string{"x"}, "obsolete"))

	if got.HasNode("x") {
		t.Fatalf("x should be gone")
	}
	for _, e := range got.Edges {
		if e.References("x") {
			t.Fatalf("edge still mentions x: %+v", e)
		}
	}
	// Parallel edge survives with x filtered, keyed mapping drops the slow
	// entry, fallback-on-x edge is dropped whole.
	var par, keyed int
	for _, e := range got.Edges {
		switch e.Kind {
		case model.EdgeParallel:
			par++
			if len(e.Targets) != 2 {
				t.Fatalf("parallel targets=%v", e.Targets)
			}
		case model.EdgeKeyedDynamic:
			keyed++
			if e.From != "b" {
				t.Fatalf("fallback-pruned edge survived: %+v", e)
			}
			if _, ok := e.Mapping["slow"]; ok {
				t.Fatalf("mapping entry to pruned node kept: %v", e.Mapping)
			}
		}
	}
	if par != 1 || keyed != 1 {
		t.Fatalf("par=%d keyed=%d", par, keyed)
	}
}

func TestPruneDropsReflectionPolicy(t *testing.T) {
	g := model.NewGraph("a", []model.Node{node("a"), node("x")}, []model.Edge{model.LinearEdge("a", "x")})
	g = g.WithReflection("x", reflection.OutputCheck("x", nil, 0.5, 1, reflection.StrategyProceed))

	got := Apply(g, model.Prune([]string{"x"}, ""))
	if _, ok := got.Reflection["x"]; ok {
		t.Fatalf("reflection policy for pruned node should be dropped")
	}
}

func TestRerouteReplacesOutgoing(t *testing.T) {
	g := model.NewGraph("a", []model.Node{node("a"), node("b"), node("c")}, []model.Edge{
		model.LinearEdge("a", "b"),
		model.ParallelEdge("a", "b", "c"),
		model.LinearEdge("b", "c"),
	})

	got := Apply(g, model.Reroute("a", "c", "skip b"))

	var fromA []model.Edge
	for _, e := range got.Edges {
		if e.From == "a" {
			fromA = append(fromA, e)
		}
	}
	if len(fromA) != 1 || fromA[0].Kind != model.EdgeLinear || fromA[0].To != "c" {
		t.Fatalf("outgoing from a = %+v", fromA)
	}
	if !edgeSet(got)["b->c"] {
		t.Fatalf("unrelated edges must survive a reroute")
	}
}

func TestRerouteUnknownTargetNoop(t *testing.T) {
	g := model.NewGraph("a", []model.Node{node("a"), node("b")}, []model.Edge{model.LinearEdge("a", "b")})
	got := Apply(g, model.Reroute("a", "ghost", ""))
	if !edgeSet(got)["a->b"] {
		t.Fatalf("reroute to unknown node should be a no-op")
	}
}

// Mutations must never leave an edge pointing at a node the graph no longer
// holds, for any graph and any mutation record.
func TestApplyNeverDanglesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-e]`), 2, 5, rapid.ID[string]).Draw(t, "ids")
		nodes := make([]model.Node, len(ids))
		for i, id := range ids {
			nodes[i] = node(id)
		}
		pick := func(label string) string { return rapid.SampledFrom(ids).Draw(t, label) }

		nEdges := rapid.IntRange(0, 6).Draw(t, "nEdges")
		edges := make([]model.Edge, 0, nEdges)
		for i := 0; i < nEdges; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "ekind") {
			case 0:
				edges = append(edges, model.LinearEdge(pick("from"), pick("to")))
			case 1:
				edges = append(edges, model.ParallelEdge(pick("from"), pick("t1"), pick("t2")))
			default:
				edges = append(edges, model.KeyedDynamicEdge(pick("from"), "k",
					map[string]string{"v": pick("mapped")}, pick("fb")))
			}
		}
		g := model.NewGraph(ids[0], nodes, edges)

		var m model.Mutation
		switch rapid.IntRange(0, 2).Draw(t, "mkind") {
		case 0:
			m = model.Inject(pick("after"), []model.Node{node("z1"), node("z2")}, "")
		case 1:
			m = model.Prune([]string{pick("victim")}, "")
		default:
			m = model.Reroute(pick("rfrom"), pick("rto"), "")
		}

		got := Apply(g, m)
		for _, e := range got.Edges {
			for _, id := range append(e.AllTargets(), e.From) {
				if !got.HasNode(id) {
					t.Fatalf("dangling reference %q after %s: %+v", id, m.Kind, e)
				}
			}
		}
	})
}
