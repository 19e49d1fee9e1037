// Package route implements the confidence-threshold policy that decides,
// before each scheduled node, whether to proceed, inject remediation nodes,
// ask for external input, or proceed with a caveat.
package route

import (
	"context"
	"fmt"
	"strings"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/registry"
	"github.com/danshapiro/reflow/internal/flow/state"
	"github.com/danshapiro/reflow/internal/llm"
)

type DecisionKind string

const (
	DecisionProceed DecisionKind = "proceed"
	DecisionMutate  DecisionKind = "mutate"
	DecisionAskUser DecisionKind = "ask_user"
	DecisionCaveat  DecisionKind = "proceed_with_caveat"
)

// Decision is the router's recommendation for the next scheduled node.
type Decision struct {
	Kind     DecisionKind
	Mutation model.Mutation
	Question string
	Reason   string
}

func proceed() Decision { return Decision{Kind: DecisionProceed} }

// Source is a well-known low-confidence data source: a state key pattern
// (doublestar glob) whose confidence the router watches, and the registered
// remediation node that can refresh it.
type Source struct {
	KeyGlob string
	NodeID  string
}

// DependentRule injects a context-gathering node when a watched derived
// result (e.g. a research output) comes back below threshold. This
// generalizes what used to be a hard-coded domain branch; the cap still
// applies, so the rule cannot loop.
type DependentRule struct {
	KeyGlob string
	NodeID  string
}

type Config struct {
	// Threshold is inclusive: confidence exactly at the threshold proceeds.
	Threshold    float64
	InjectionCap int

	// CostAware prefers asking the user over re-fetching when confidence is
	// within CostMargin of the threshold and every queued remediation node
	// is high-cost.
	CostAware  bool
	CostMargin float64

	Sources        []Source
	DependentRules []DependentRule
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = 0.6
	}
	if c.InjectionCap <= 0 {
		c.InjectionCap = 2
	}
	if c.CostMargin <= 0 {
		c.CostMargin = 0.05
	}
	return c
}

type Router struct {
	cfg      Config
	registry *registry.Registry

	// Optional natural-language strategy service. Malformed or unrecognized
	// responses fall through to the deterministic fallbacks.
	Strategy llm.Completer
}

func New(cfg Config, reg *registry.Registry) *Router {
	return &Router{cfg: cfg.withDefaults(), registry: reg}
}

func (r *Router) Threshold() float64 { return r.cfg.Threshold }

// Route decides what to do before the next scheduled node runs. Injections
// anchor at the node that just ran, so remediation executes before next. It
// never recommends an injection whose node has exhausted its cap; that
// cap is the system's primary cycle-breaker.
func (r *Router) Route(ctx context.Context, st *state.State, anchor string, next model.Node) Decision {
	inputs := next.Inputs()
	minConf := st.MinimumConfidence(inputs)
	if minConf >= r.cfg.Threshold {
		return proceed()
	}

	// Generic remediation: queue a refresh node for each watched source
	// whose confidence is below threshold and whose cap is not exhausted.
	var queued []registry.Spec
	var exhausted []Source
	for _, src := range r.cfg.Sources {
		names := st.MatchKeys(src.KeyGlob)
		if len(names) == 0 || st.MinimumConfidence(names) >= r.cfg.Threshold {
			continue
		}
		if st.InjectionCount(src.NodeID) >= r.cfg.InjectionCap {
			exhausted = append(exhausted, src)
			continue
		}
		if spec, ok := r.registry.Lookup(src.NodeID); ok {
			queued = append(queued, spec)
		}
	}

	if len(queued) > 0 {
		if r.cfg.CostAware && r.cfg.Threshold-minConf <= r.cfg.CostMargin && allHighCost(queued) {
			return Decision{
				Kind:     DecisionAskUser,
				Question: askQuestion(st, inputs, minConf),
				Reason:   "marginal confidence gap; all remediation nodes are high-cost",
			}
		}
		nodes := make([]model.Node, 0, len(queued))
		ids := make([]string, 0, len(queued))
		for _, spec := range queued {
			nodes = append(nodes, spec.Factory())
			ids = append(ids, spec.ID)
		}
		reason := fmt.Sprintf("input confidence %.2f below threshold %.2f; refreshing %s",
			minConf, r.cfg.Threshold, strings.Join(ids, ", "))
		return Decision{
			Kind:     DecisionMutate,
			Mutation: model.Inject(anchor, nodes, reason),
			Reason:   reason,
		}
	}

	// Dependent-result remediation: a watched derived key is low, inject
	// its context-gathering node (cap still applies).
	for _, rule := range r.cfg.DependentRules {
		names := st.MatchKeys(rule.KeyGlob)
		if len(names) == 0 || st.MinimumConfidence(names) >= r.cfg.Threshold {
			continue
		}
		if st.InjectionCount(rule.NodeID) >= r.cfg.InjectionCap {
			continue
		}
		spec, ok := r.registry.Lookup(rule.NodeID)
		if !ok {
			continue
		}
		reason := fmt.Sprintf("dependent result %s below threshold; gathering context via %s", rule.KeyGlob, rule.NodeID)
		return Decision{
			Kind:     DecisionMutate,
			Mutation: model.Inject(anchor, []model.Node{spec.Factory()}, reason),
			Reason:   reason,
		}
	}

	if d, ok := r.consultStrategy(ctx, st, anchor, next, minConf); ok {
		return d
	}

	if len(exhausted) > 0 {
		return Decision{
			Kind:     DecisionAskUser,
			Question: askQuestion(st, inputs, minConf),
			Reason:   fmt.Sprintf("remediation cap exhausted for %s", exhausted[0].NodeID),
		}
	}
	return Decision{
		Kind:   DecisionCaveat,
		Reason: fmt.Sprintf("proceeding despite unresolved confidence %.2f on inputs of %s", minConf, next.ID()),
	}
}

func allHighCost(specs []registry.Spec) bool {
	for _, s := range specs {
		if !s.HighCost() {
			return false
		}
	}
	return true
}

// askQuestion names the least-confident input in the question shown to the
// user.
func askQuestion(st *state.State, inputs []string, minConf float64) string {
	worst := ""
	worstScore := 1.0
	for _, key := range inputs {
		if c, ok := st.ConfidenceOf(key); ok && c.Score <= worstScore {
			worst = key
			worstScore = c.Score
		}
	}
	if worst == "" {
		return fmt.Sprintf("Confidence in the available data is low (%.2f). How should I proceed?", minConf)
	}
	return fmt.Sprintf("Confidence in %s is low (%.2f). How should I proceed?", worst, worstScore)
}
