// Package registry catalogs the units of work available for graph
// construction, keyed by node ID, with declared IO keys and cost/latency
// metadata consumed by the uncertainty router and the graph synthesizer.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/danshapiro/reflow/internal/flow/model"
)

type CostClass string

const (
	CostLow    CostClass = "low"
	CostMedium CostClass = "medium"
	CostHigh   CostClass = "high"
)

// Spec describes one registered unit of work. Factory builds a fresh node
// instance for each graph that uses it.
type Spec struct {
	ID          string
	Description string
	Inputs      []string
	Outputs     []string
	Cost        CostClass
	Latency     time.Duration // rough per-invocation estimate
	Factory     func() model.Node
}

func (s Spec) HighCost() bool { return s.Cost == CostHigh }

type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
	order []string
}

func New() *Registry {
	return &Registry{specs: map[string]Spec{}}
}

// Register adds or replaces a spec. Registration order is preserved for
// catalog rendering.
func (r *Registry) Register(spec Spec) error {
	id := strings.TrimSpace(spec.ID)
	if id == "" {
		return fmt.Errorf("registry: spec id is required")
	}
	if spec.Factory == nil {
		return fmt.Errorf("registry: spec %s has no factory", id)
	}
	spec.ID = id
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[id]; !ok {
		r.order = append(r.order, id)
	}
	r.specs[id] = spec
	return nil
}

func (r *Registry) Lookup(id string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[id]
	return s, ok
}

// Build instantiates a node for the given spec ID.
func (r *Registry) Build(id string) (model.Node, bool) {
	s, ok := r.Lookup(id)
	if !ok {
		return nil, false
	}
	return s.Factory(), true
}

// List returns all specs in registration order.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.specs[id])
	}
	return out
}

// Match returns spec IDs matching a doublestar glob, sorted.
func (r *Registry) Match(pattern string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for id := range r.specs {
		ok, err := doublestar.Match(pattern, id)
		if err != nil {
			return nil
		}
		if ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Catalog renders a textual listing of the registered nodes, one per line,
// in the form the graph-synthesis prompt consumes.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for _, s := range r.List() {
		fmt.Fprintf(&b, "- %s: %s (inputs: %s; outputs: %s; cost: %s)\n",
			s.ID, s.Description,
			joinOrNone(s.Inputs), joinOrNone(s.Outputs), costOrDefault(s.Cost))
	}
	return b.String()
}

func joinOrNone(keys []string) string {
	if len(keys) == 0 {
		return "none"
	}
	return strings.Join(keys, ", ")
}

func costOrDefault(c CostClass) string {
	if c == "" {
		return string(CostLow)
	}
	return string(c)
}
