package model

import (
	"fmt"
	"sort"

	"github.com/danshapiro/reflow/internal/flow/state"
)

type EdgeKind string

const (
	EdgeLinear       EdgeKind = "linear"
	EdgeParallel     EdgeKind = "parallel"
	EdgeKeyed        EdgeKind = "keyed"
	EdgeKeyedDynamic EdgeKind = "keyed_dynamic"
)

// Edge connects a source node to one or more successors. The four kinds
// share one struct; constructors keep the per-kind invariants.
//
// Keyed and keyed-dynamic edges carry a value→target dispatch table plus a
// fallback. Both compile to the same runtime form: keyed edges stringify the
// typed key's value at construction, keyed-dynamic edges reference the key
// by untyped name (used for synthesized graphs).
type Edge struct {
	Kind     EdgeKind
	From     string
	To       string            // linear
	Targets  []string          // parallel fan-out
	KeyName  string            // keyed, keyed-dynamic
	Mapping  map[string]string // stringified value -> target
	Fallback string
}

func LinearEdge(from, to string) Edge {
	return Edge{Kind: EdgeLinear, From: from, To: to}
}

func ParallelEdge(from string, to ...string) Edge {
	return Edge{Kind: EdgeParallel, From: from, Targets: append([]string{}, to...)}
}

// KeyedEdge dispatches on a typed state key. Mapping values are stringified
// once here; traversal compares against the stringified runtime value.
func KeyedEdge[T comparable](from string, key state.Key[T], mapping map[T]string, fallback string) Edge {
	m := make(map[string]string, len(mapping))
	for v, target := range mapping {
		m[fmt.Sprint(v)] = target
	}
	return Edge{Kind: EdgeKeyed, From: from, KeyName: key.Name(), Mapping: m, Fallback: fallback}
}

// KeyedDynamicEdge is KeyedEdge with the key referenced by name only.
func KeyedDynamicEdge(from, keyName string, mapping map[string]string, fallback string) Edge {
	m := make(map[string]string, len(mapping))
	for v, target := range mapping {
		m[v] = target
	}
	return Edge{Kind: EdgeKeyedDynamic, From: from, KeyName: keyName, Mapping: m, Fallback: fallback}
}

// AllTargets returns every node this edge can reach, deterministic order,
// deduplicated. For keyed edges that is all mapped targets plus the
// fallback — scheduling is reachability analysis, not branch selection.
func (e Edge) AllTargets() []string {
	var raw []string
	switch e.Kind {
	case EdgeLinear:
		raw = []string{e.To}
	case EdgeParallel:
		raw = append(raw, e.Targets...)
	case EdgeKeyed, EdgeKeyedDynamic:
		vals := make([]string, 0, len(e.Mapping))
		for v := range e.Mapping {
			vals = append(vals, v)
		}
		sort.Strings(vals)
		for _, v := range vals {
			raw = append(raw, e.Mapping[v])
		}
		if e.Fallback != "" {
			raw = append(raw, e.Fallback)
		}
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// References reports whether the edge mentions the node as source,
// destination, fallback, or mapping value.
func (e Edge) References(id string) bool {
	if e.From == id || e.To == id || e.Fallback == id {
		return true
	}
	for _, t := range e.Targets {
		if t == id {
			return true
		}
	}
	for _, t := range e.Mapping {
		if t == id {
			return true
		}
	}
	return false
}

// SamePair reports whether two edges describe the same source+target pair;
// the compiler coalesces such duplicates silently.
func (e Edge) SamePair(o Edge) bool {
	if e.Kind != o.Kind || e.From != o.From {
		return false
	}
	switch e.Kind {
	case EdgeLinear:
		return e.To == o.To
	case EdgeParallel:
		a, b := append([]string{}, e.Targets...), append([]string{}, o.Targets...)
		sort.Strings(a)
		sort.Strings(b)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	default:
		if e.KeyName != o.KeyName || e.Fallback != o.Fallback || len(e.Mapping) != len(o.Mapping) {
			return false
		}
		for v, t := range e.Mapping {
			if o.Mapping[v] != t {
				return false
			}
		}
		return true
	}
}

func (e Edge) clone() Edge {
	c := e
	c.Targets = append([]string{}, e.Targets...)
	if e.Mapping != nil {
		c.Mapping = make(map[string]string, len(e.Mapping))
		for v, t := range e.Mapping {
			c.Mapping[v] = t
		}
	}
	return c
}
