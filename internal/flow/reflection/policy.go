// Package reflection implements per-node reflection policies and the
// hierarchical strategic/tactical/execution reflector.
package reflection

import (
	"github.com/danshapiro/reflow/internal/flow/state"
)

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeRefine   Outcome = "refine"
	OutcomeEscalate Outcome = "escalate"
	OutcomeAskUser  Outcome = "request_user_input"
)

// Result is the verdict of one policy evaluation.
type Result struct {
	Outcome  Outcome
	Target   string // refine: node to revisit
	Reason   string
	Question string // request_user_input
}

func Success() Result { return Result{Outcome: OutcomeSuccess} }

func Refine(target, reason string) Result {
	return Result{Outcome: OutcomeRefine, Target: target, Reason: reason}
}

func Escalate(reason string) Result {
	return Result{Outcome: OutcomeEscalate, Reason: reason}
}

func AskUser(question string) Result {
	return Result{Outcome: OutcomeAskUser, Question: question}
}

// Strategy names what the caller should do when a policy escalates.
type Strategy string

const (
	StrategyAbort   Strategy = "abort"
	StrategyAskUser Strategy = "ask_user"
	StrategyProceed Strategy = "proceed"
)

// Policy evaluates merged state after a node (or at a reflection level).
// A nil Evaluate always succeeds. MaxRetries bounds how many refine results
// the policy may produce for one scope before being forced to success.
type Policy struct {
	Evaluate   func(st *state.State) Result
	MaxRetries int
	Escalation Strategy
}

func (p Policy) Defined() bool { return p.Evaluate != nil }

// Retry bookkeeping lives in state so it survives graph mutations and shows
// up in the audit trail.
func RetryKey(scope string) string  { return "reflection.retries." + scope }
func ForcedKey(scope string) string { return "reflection.forced." + scope }

func retryCount(st *state.State, scope string) int {
	raw, ok := st.GetRaw(RetryKey(scope))
	if !ok {
		return 0
	}
	n, ok := raw.(int)
	if !ok {
		return 0
	}
	return n
}

// Apply evaluates the policy for a scope (node id or level name) and
// enforces its retry budget. A refine past the budget is converted to
// success to guarantee termination; the discarded reason is preserved under
// the scope's forced key. Retry counters are tracked in the given state.
func Apply(p Policy, scope string, st *state.State) Result {
	if !p.Defined() {
		return Success()
	}
	r := p.Evaluate(st)
	if r.Outcome != OutcomeRefine {
		return r
	}
	n := retryCount(st, scope)
	if n >= p.MaxRetries {
		st.SetRaw(ForcedKey(scope), r.Reason)
		return Success()
	}
	st.SetRaw(RetryKey(scope), n+1)
	return r
}
