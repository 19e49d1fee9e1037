package registry

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/state"
)

func spec(id string, cost CostClass) Spec {
	return Spec{
		ID:          id,
		Description: "does " + id,
		Outputs:     []string{id + ".out"},
		Cost:        cost,
		Factory:     func() model.Node { return model.NewFuncNode(id, nil, []string{id + ".out"}, nil) },
	}
}

func TestRegisterValidation(t *testing.T) {
	r := New()
	if err := r.Register(Spec{ID: "  "}); err == nil {
		t.Fatalf("blank id should fail")
	}
	if err := r.Register(Spec{ID: "no_factory"}); err == nil {
		t.Fatalf("missing factory should fail")
	}
	if err := r.Register(spec("fetch", CostLow)); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestRegisterReplacesInPlace(t *testing.T) {
	r := New()
	r.Register(spec("fetch", CostLow))
	r.Register(spec("parse", CostLow))
	r.Register(spec("fetch", CostHigh)) // replacement keeps position

	list := r.List()
	if len(list) != 2 || list[0].ID != "fetch" || list[1].ID != "parse" {
		t.Fatalf("list=%v", list)
	}
	if list[0].Cost != CostHigh {
		t.Fatalf("replacement not applied: %v", list[0])
	}
}

func TestLookupAndBuild(t *testing.T) {
	r := New()
	r.Register(spec("fetch", CostLow))

	if _, ok := r.Lookup("ghost"); ok {
		t.Fatalf("ghost lookup succeeded")
	}
	n, ok := r.Build("fetch")
	if !ok || n.ID() != "fetch" {
		t.Fatalf("Build=%v,%v", n, ok)
	}
	// Each build is a fresh instance.
	n2, _ := r.Build("fetch")
	if n == n2 {
		t.Fatalf("Build returned a shared instance")
	}
}

func TestMatchGlob(t *testing.T) {
	r := New()
	r.Register(spec("fetch_finance", CostLow))
	r.Register(spec("fetch_calendar", CostLow))
	r.Register(spec("summarize", CostLow))

	got := r.Match("fetch_*")
	want := []string{"fetch_calendar", "fetch_finance"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Match=%v, want %v", got, want)
	}
	if got := r.Match("[invalid"); got != nil {
		t.Fatalf("bad pattern should match nothing: %v", got)
	}
}

func TestCatalogRendering(t *testing.T) {
	r := New()
	r.Register(Spec{
		ID:          "fetch_finance",
		Description: "pull quarterly figures",
		Inputs:      []string{"quarter"},
		Outputs:     []string{"finance.q2"},
		Cost:        CostHigh,
		Factory:     func() model.Node { return model.NewFuncNode("fetch_finance", nil, nil, nil) },
	})
	r.Register(spec("summarize", ""))

	got := r.Catalog()
	for _, want := range []string{
		"- fetch_finance: pull quarterly figures (inputs: quarter; outputs: finance.q2; cost: high)",
		"- summarize: does summarize (inputs: none; outputs: summarize.out; cost: low)",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("catalog missing %q:\n%s", want, got)
		}
	}
}

func TestSimulatedNode(t *testing.T) {
	s := Simulated(Spec{
		ID:      "fetch_calendar",
		Outputs: []string{"calendar.events"},
		Factory: nil, // replaced by Simulated
	}, 0.85)

	n := s.Factory()
	d, err := n.Execute(context.Background(), state.New().Snapshot(), model.NewExecContext(nil))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	v, ok := d.GetRaw("calendar.events")
	if !ok || v != "simulated:fetch_calendar" {
		t.Fatalf("output=%v,%v", v, ok)
	}

	st := state.New()
	st.Merge("fetch_calendar", d)
	if c, ok := st.ConfidenceOf("calendar.events"); !ok || c.Score != 0.85 {
		t.Fatalf("confidence=%v,%v", c, ok)
	}
}
