package compile

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/reflection"
	"github.com/danshapiro/reflow/internal/flow/state"
)

func emit(id string, outputs map[string]any) model.Node {
	var outs []string
	for k := range outputs {
		outs = append(outs, k)
	}
	return model.NewFuncNode(id, nil, outs,
		func(_ context.Context, _ *state.Snapshot, _ *model.ExecContext) (*state.Delta, error) {
			d := state.NewDelta()
			for k, v := range outputs {
				d.PutRaw(k, v)
			}
			return d, nil
		})
}

func passthrough(id string, inputs ...string) model.Node {
	return model.NewFuncNode(id, inputs, nil, nil)
}

func TestCompileRequiresEntry(t *testing.T) {
	if _, err := Compile(model.NewGraph("", nil, nil)); err == nil {
		t.Fatalf("empty entry should fail")
	}
	if _, err := Compile(model.NewGraph("ghost", []model.Node{emit("a", nil)}, nil)); err == nil {
		t.Fatalf("absent entry node should fail")
	}
}

func TestCompileDiscardsDanglingEdges(t *testing.T) {
	g := model.NewGraph("a", []model.Node{emit("a", nil), emit("b", nil)}, []model.Edge{
		model.LinearEdge("a", "b"),
		model.LinearEdge("a", "ghost"),
		model.LinearEdge("ghost", "b"),
	})
	x, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, e := range x.Graph().Edges {
		if e.References("ghost") {
			t.Fatalf("dangling edge survived: %+v", e)
		}
	}
}

func TestCompileCoalescesDuplicates(t *testing.T) {
	g := model.NewGraph("a", []model.Node{emit("a", nil), emit("b", nil)}, []model.Edge{
		model.LinearEdge("a", "b"),
		model.LinearEdge("a", "b"),
		model.LinearEdge(model.StartNodeID, "a"),
	})
	x, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var ab int
	for _, e := range x.Graph().Edges {
		if e.From == "a" && e.To == "b" {
			ab++
		}
	}
	if ab != 1 {
		t.Fatalf("duplicate a->b edges: %d", ab)
	}
}

func TestCompileSynthesizesStartPath(t *testing.T) {
	g := model.NewGraph("a", []model.Node{emit("a", nil), emit("b", nil)}, []model.Edge{
		model.LinearEdge("a", "b"),
	})
	x, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	found := false
	for _, e := range x.Graph().Edges {
		if e.From == model.StartNodeID && e.To == "a" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no start->entry edge synthesized: %v", x.Graph().Edges)
	}

	// Already reachable: no second edge added.
	g2 := model.NewGraph("a", []model.Node{emit("a", nil)}, []model.Edge{
		model.LinearEdge(model.StartNodeID, "a"),
	})
	x2, err := Compile(g2)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(x2.Graph().Edges) != 1 {
		t.Fatalf("edges=%v", x2.Graph().Edges)
	}
}

func TestRunChecksInputs(t *testing.T) {
	g := model.NewGraph("b", []model.Node{passthrough("b", "k")}, nil)
	x, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	st := state.New()
	_, err = x.Run(context.Background(), "b", st, model.NewExecContext(nil))
	var mie *MissingInputError
	if !errors.As(err, &mie) {
		t.Fatalf("err=%v, want MissingInputError", err)
	}
	if mie.NodeID != "b" || mie.Key != "k" {
		t.Fatalf("mie=%+v", mie)
	}

	st.SetRaw("k", "present")
	if _, err := x.Run(context.Background(), "b", st, model.NewExecContext(nil)); err != nil {
		t.Fatalf("Run with input present: %v", err)
	}
}

func TestReflectFoldsOutcomeIntoState(t *testing.T) {
	g := model.NewGraph("a", []model.Node{emit("a", map[string]any{"out": 1})}, nil)
	g = g.WithReflection("a", reflection.Policy{
		Evaluate: func(_ *state.State) reflection.Result {
			return reflection.Refine("", "confidence too low")
		},
		MaxRetries: 3,
		Escalation: reflection.StrategyProceed,
	})
	x, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	st := state.New()
	res := x.Reflect("a", st)
	if res.Outcome != reflection.OutcomeRefine {
		t.Fatalf("outcome=%v", res.Outcome)
	}
	if v, _ := st.GetRaw("reflection.a.outcome"); v != string(reflection.OutcomeRefine) {
		t.Fatalf("folded outcome=%v", v)
	}
	if v, _ := st.GetRaw("reflection.a.reason"); v != "confidence too low" {
		t.Fatalf("folded reason=%v", v)
	}
}

func TestReflectWithoutPolicyIsSuccess(t *testing.T) {
	g := model.NewGraph("a", []model.Node{emit("a", nil)}, nil)
	x, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res := x.Reflect("a", state.New()); res.Outcome != reflection.OutcomeSuccess {
		t.Fatalf("outcome=%v", res.Outcome)
	}
}

func TestSuccessorsKeyedDispatch(t *testing.T) {
	g := model.NewGraph("plan",
		[]model.Node{emit("plan", nil), emit("research", nil), emit("summarize", nil)},
		[]model.Edge{
			model.KeyedDynamicEdge("plan", "plan.route",
				map[string]string{"deep": "research", "quick": "summarize"}, "summarize"),
		})
	x, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cases := []struct {
		name  string
		value any
		set   bool
		want  string
	}{
		{"mapped", "deep", true, "research"},
		{"other mapped", "quick", true, "summarize"},
		{"unmapped falls back", "sideways", true, "summarize"},
		{"absent falls back", nil, false, "summarize"},
	}
	for _, tc := range cases {
		st := state.New()
		if tc.set {
			st.SetRaw("plan.route", tc.value)
		}
		got := x.Successors("plan", st)
		if len(got) != 1 || got[0] != tc.want {
			t.Fatalf("%s: Successors=%v, want [%s]", tc.name, got, tc.want)
		}
	}
}

func TestSuccessorsSkipsEndSentinel(t *testing.T) {
	g := model.NewGraph("a", []model.Node{emit("a", nil)}, []model.Edge{
		model.LinearEdge("a", model.EndNodeID),
	})
	x, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := x.Successors("a", state.New()); len(got) != 0 {
		t.Fatalf("Successors=%v, want none", got)
	}
}

func TestOrderExpandsKeyedConservatively(t *testing.T) {
	g := model.NewGraph("plan",
		[]model.Node{emit("plan", nil), emit("research", nil), emit("summarize", nil), emit("report", nil)},
		[]model.Edge{
			model.KeyedDynamicEdge("plan", "plan.route",
				map[string]string{"deep": "research"}, "summarize"),
			model.LinearEdge("research", "report"),
			model.LinearEdge("summarize", "report"),
		})
	x, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	order := x.Order()
	if len(order) != 4 || order[0] != "plan" {
		t.Fatalf("order=%v", order)
	}
	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	if pos["report"] < pos["research"] || pos["report"] < pos["summarize"] {
		t.Fatalf("report scheduled before its predecessors: %v", order)
	}
}

func TestResolvedOrderFollowsDispatch(t *testing.T) {
	g := model.NewGraph("plan",
		[]model.Node{emit("plan", nil), emit("research", nil), emit("summarize", nil), emit("report", nil)},
		[]model.Edge{
			model.KeyedDynamicEdge("plan", "plan.route",
				map[string]string{"deep": "research"}, "summarize"),
			model.LinearEdge("research", "report"),
			model.LinearEdge("summarize", "report"),
		})
	x, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	st := state.New()
	st.SetRaw("plan.route", "deep")
	got := x.ResolvedOrder(st)
	want := []string{"plan", "research", "report"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ResolvedOrder=%v, want %v", got, want)
	}

	// Absent key takes the fallback branch; summarize replaces research.
	got = x.ResolvedOrder(state.New())
	want = []string{"plan", "summarize", "report"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ResolvedOrder=%v, want %v", got, want)
	}
}
