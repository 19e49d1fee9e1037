// Package validate lints graph models before compilation. Errors name
// defects the compiler would reject or silently discard; warnings flag
// shapes that run but rarely mean what the author intended.
package validate

import (
	"fmt"
	"strings"

	"github.com/danshapiro/reflow/internal/flow/model"
)

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

type Diagnostic struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	NodeID   string   `json:"node_id,omitempty"`
	EdgeFrom string   `json:"edge_from,omitempty"`
}

// Validate runs all built-in lint rules against the graph.
func Validate(g model.Graph) []Diagnostic {
	var diags []Diagnostic
	diags = append(diags, lintEntryExists(g)...)
	diags = append(diags, lintEdgeEndpointsExist(g)...)
	diags = append(diags, lintKeyedFallback(g)...)
	diags = append(diags, lintDuplicateEdges(g)...)
	diags = append(diags, lintReachability(g)...)
	return diags
}

// ValidateOrError fails on the first error-severity diagnostic set.
func ValidateOrError(g model.Graph) error {
	var errs []string
	for _, d := range Validate(g) {
		if d.Severity == SeverityError {
			errs = append(errs, d.Rule+": "+d.Message)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func lintEntryExists(g model.Graph) []Diagnostic {
	if g.Entry == "" {
		return []Diagnostic{{Rule: "entry_exists", Severity: SeverityError, Message: "graph has no entry node"}}
	}
	if _, ok := g.Nodes[g.Entry]; !ok {
		return []Diagnostic{{
			Rule:     "entry_exists",
			Severity: SeverityError,
			Message:  fmt.Sprintf("entry node %q is not in the graph", g.Entry),
			NodeID:   g.Entry,
		}}
	}
	return nil
}

func lintEdgeEndpointsExist(g model.Graph) []Diagnostic {
	var diags []Diagnostic
	for _, e := range g.Edges {
		if !g.HasNode(e.From) {
			diags = append(diags, Diagnostic{
				Rule:     "edge_endpoints_exist",
				Severity: SeverityError,
				Message:  fmt.Sprintf("edge source %q is not in the graph", e.From),
				EdgeFrom: e.From,
			})
		}
		for _, t := range e.AllTargets() {
			if !g.HasNode(t) {
				diags = append(diags, Diagnostic{
					Rule:     "edge_endpoints_exist",
					Severity: SeverityError,
					Message:  fmt.Sprintf("edge from %q targets unknown node %q", e.From, t),
					EdgeFrom: e.From,
				})
			}
		}
	}
	return diags
}

func lintKeyedFallback(g model.Graph) []Diagnostic {
	var diags []Diagnostic
	for _, e := range g.Edges {
		if e.Kind != model.EdgeKeyed && e.Kind != model.EdgeKeyedDynamic {
			continue
		}
		if e.Fallback == "" {
			diags = append(diags, Diagnostic{
				Rule:     "keyed_fallback",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("keyed edge from %q on %q has no fallback; unmapped values dead-end", e.From, e.KeyName),
				EdgeFrom: e.From,
			})
		}
	}
	return diags
}

func lintDuplicateEdges(g model.Graph) []Diagnostic {
	var diags []Diagnostic
	for i, e := range g.Edges {
		for _, o := range g.Edges[i+1:] {
			if e.SamePair(o) {
				diags = append(diags, Diagnostic{
					Rule:     "duplicate_edges",
					Severity: SeverityInfo,
					Message:  fmt.Sprintf("duplicate edge from %q; the compiler coalesces these", e.From),
					EdgeFrom: e.From,
				})
			}
		}
	}
	return diags
}

func lintReachability(g model.Graph) []Diagnostic {
	seen := map[string]bool{g.Entry: true, model.StartNodeID: true}
	queue := []string{model.StartNodeID, g.Entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.Outgoing(cur) {
			for _, t := range e.AllTargets() {
				if !seen[t] {
					seen[t] = true
					queue = append(queue, t)
				}
			}
		}
	}
	var diags []Diagnostic
	for _, id := range g.NodeIDs() {
		if !seen[id] {
			diags = append(diags, Diagnostic{
				Rule:     "reachability",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("node %q is unreachable from the entry", id),
				NodeID:   id,
			})
		}
	}
	return diags
}
