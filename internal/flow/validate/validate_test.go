package validate

import (
	"testing"

	"github.com/danshapiro/reflow/internal/flow/model"
)

func node(id string) model.Node {
	return model.NewFuncNode(id, nil, nil, nil)
}

func byRule(diags []Diagnostic, rule string) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Rule == rule {
			out = append(out, d)
		}
	}
	return out
}

func TestValidateCleanGraph(t *testing.T) {
	g := model.NewGraph("a", []model.Node{node("a"), node("b")}, []model.Edge{
		model.LinearEdge("a", "b"),
	})
	if diags := Validate(g); len(diags) != 0 {
		t.Fatalf("diags=%v", diags)
	}
	if err := ValidateOrError(g); err != nil {
		t.Fatalf("ValidateOrError: %v", err)
	}
}

func TestEntryMissing(t *testing.T) {
	cases := []struct {
		name string
		g    model.Graph
	}{
		{"empty entry", model.NewGraph("", []model.Node{node("a")}, nil)},
		{"absent entry", model.NewGraph("ghost", []model.Node{node("a")}, nil)},
	}
	for _, tc := range cases {
		diags := byRule(Validate(tc.g), "entry_exists")
		if len(diags) != 1 || diags[0].Severity != SeverityError {
			t.Fatalf("%s: diags=%v", tc.name, diags)
		}
		if err := ValidateOrError(tc.g); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestDanglingEdgeIsError(t *testing.T) {
	g := model.NewGraph("a", []model.Node{node("a")}, []model.Edge{
		model.LinearEdge("a", "ghost"),
		model.LinearEdge("phantom", "a"),
	})
	diags := byRule(Validate(g), "edge_endpoints_exist")
	if len(diags) != 2 {
		t.Fatalf("diags=%v", diags)
	}
	for _, d := range diags {
		if d.Severity != SeverityError {
			t.Fatalf("severity=%v", d.Severity)
		}
	}
}

func TestSentinelEndpointsAreFine(t *testing.T) {
	g := model.NewGraph("a", []model.Node{node("a")}, []model.Edge{
		model.LinearEdge(model.StartNodeID, "a"),
		model.LinearEdge("a", model.EndNodeID),
	})
	if diags := byRule(Validate(g), "edge_endpoints_exist"); len(diags) != 0 {
		t.Fatalf("diags=%v", diags)
	}
}

func TestKeyedWithoutFallbackWarns(t *testing.T) {
	g := model.NewGraph("a", []model.Node{node("a"), node("b")}, []model.Edge{
		model.KeyedDynamicEdge("a", "route", map[string]string{"v": "b"}, ""),
	})
	diags := byRule(Validate(g), "keyed_fallback")
	if len(diags) != 1 || diags[0].Severity != SeverityWarning {
		t.Fatalf("diags=%v", diags)
	}
	// Warnings do not fail ValidateOrError.
	if err := ValidateOrError(g); err != nil {
		t.Fatalf("ValidateOrError: %v", err)
	}
}

func TestDuplicateEdgesInfo(t *testing.T) {
	g := model.NewGraph("a", []model.Node{node("a"), node("b")}, []model.Edge{
		model.LinearEdge("a", "b"),
		model.LinearEdge("a", "b"),
	})
	diags := byRule(Validate(g), "duplicate_edges")
	if len(diags) != 1 || diags[0].Severity != SeverityInfo {
		t.Fatalf("diags=%v", diags)
	}
}

func TestUnreachableNodeWarns(t *testing.T) {
	g := model.NewGraph("a", []model.Node{node("a"), node("b"), node("island")}, []model.Edge{
		model.LinearEdge("a", "b"),
	})
	diags := byRule(Validate(g), "reachability")
	if len(diags) != 1 || diags[0].NodeID != "island" {
		t.Fatalf("diags=%v", diags)
	}
}
