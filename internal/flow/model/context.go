package model

import (
	"github.com/danshapiro/reflow/internal/llm"
)

// ExecContext is the shared execution context handed to every node. It
// exposes read access to shared services and a queue through which a node
// may ask the executor to alter the graph on its behalf.
//
// Single-threaded by design: nodes run one at a time, so the queue needs no
// locking. The executor drains it once per iteration.
type ExecContext struct {
	Completer llm.Completer
	services  map[string]any
	mutations []Mutation
}

func NewExecContext(completer llm.Completer) *ExecContext {
	return &ExecContext{Completer: completer, services: map[string]any{}}
}

// WithService registers a named domain client (calendar, files, finance,
// message sources — opaque to the core).
func (ec *ExecContext) WithService(name string, svc any) *ExecContext {
	ec.services[name] = svc
	return ec
}

func (ec *ExecContext) Service(name string) (any, bool) {
	svc, ok := ec.services[name]
	return svc, ok
}

// RequestMutation enqueues a graph change for the executor to consider at
// the next decision point. First non-none request wins for the iteration.
func (ec *ExecContext) RequestMutation(m Mutation) {
	if m.IsNone() {
		return
	}
	ec.mutations = append(ec.mutations, m)
}

// DrainMutations returns and clears the pending mutation requests.
func (ec *ExecContext) DrainMutations() []Mutation {
	out := ec.mutations
	ec.mutations = nil
	return out
}
