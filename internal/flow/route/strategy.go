package route

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/state"
)

const (
	strategyGather       = "gather_more_info"
	strategyCaveat       = "proceed_with_caveat"
	strategyAskUser      = "ask_user"
	strategyConservative = "conservative"
)

const strategyPromptTemplate = `A task graph is about to run node %q but input confidence is %.2f (threshold %.2f).
Choose exactly one strategy and answer as JSON: {"strategy": "<choice>", "reason": "<short reason>"}.
Choices: gather_more_info, proceed_with_caveat, ask_user, conservative.`

type strategyResponse struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// consultStrategy asks the optional natural-language strategy service to
// choose a course of action. Malformed or unrecognized responses report
// ok=false so the caller falls through to the deterministic fallbacks.
func (r *Router) consultStrategy(ctx context.Context, st *state.State, anchor string, next model.Node, minConf float64) (Decision, bool) {
	if r.Strategy == nil {
		return Decision{}, false
	}
	raw, err := r.Strategy.Complete(ctx, fmt.Sprintf(strategyPromptTemplate, next.ID(), minConf, r.cfg.Threshold))
	if err != nil {
		return Decision{}, false
	}
	choice, reason, ok := parseStrategy(raw)
	if !ok {
		return Decision{}, false
	}
	switch choice {
	case strategyGather:
		// Inject the first watched source with remaining cap; with nothing
		// left to gather the advice is unusable.
		for _, src := range r.cfg.Sources {
			if st.InjectionCount(src.NodeID) >= r.cfg.InjectionCap {
				continue
			}
			spec, found := r.registry.Lookup(src.NodeID)
			if !found {
				continue
			}
			why := "strategy service chose gather_more_info: " + reason
			return Decision{
				Kind:     DecisionMutate,
				Mutation: model.Inject(anchor, []model.Node{spec.Factory()}, why),
				Reason:   why,
			}, true
		}
		return Decision{}, false
	case strategyCaveat:
		return Decision{Kind: DecisionCaveat, Reason: "strategy service chose proceed_with_caveat: " + reason}, true
	case strategyAskUser, strategyConservative:
		return Decision{
			Kind:     DecisionAskUser,
			Question: askQuestion(st, next.Inputs(), minConf),
			Reason:   "strategy service chose " + choice + ": " + reason,
		}, true
	}
	return Decision{}, false
}

// parseStrategy accepts the structured JSON form and, tolerantly, a bare
// strategy token anywhere in the response.
func parseStrategy(raw string) (choice, reason string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}
	var resp strategyResponse
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err == nil {
				if valid(resp.Strategy) {
					return resp.Strategy, resp.Reason, true
				}
			}
		}
	}
	lower := strings.ToLower(raw)
	for _, c := range []string{strategyGather, strategyCaveat, strategyAskUser, strategyConservative} {
		if strings.Contains(lower, c) {
			return c, "", true
		}
	}
	return "", "", false
}

func valid(s string) bool {
	switch s {
	case strategyGather, strategyCaveat, strategyAskUser, strategyConservative:
		return true
	}
	return false
}
