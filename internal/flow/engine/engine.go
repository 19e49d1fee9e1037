// Package engine drives adaptive execution of a compiled graph: it computes
// execution order, runs unvisited nodes, merges their deltas into shared
// state, and applies at most one structural mutation per iteration before
// recomputing the order.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/danshapiro/reflow/internal/flow/compile"
	"github.com/danshapiro/reflow/internal/flow/memory"
	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/mutate"
	"github.com/danshapiro/reflow/internal/flow/reflection"
	"github.com/danshapiro/reflow/internal/flow/route"
	"github.com/danshapiro/reflow/internal/flow/state"
	"github.com/danshapiro/reflow/internal/flow/telemetry"
	"github.com/danshapiro/reflow/internal/llm"
)

// NodeError wraps an opaque failure from node logic. Fatal for the current
// run: the engine never auto-retries, the caller decides whether to re-run
// with a different graph.
type NodeError struct {
	NodeID string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

const defaultMaxIterations = 1000

// Options configure one executor. Everything except the graph is optional.
type Options struct {
	// RunID is a filesystem-safe unique identifier. Generated (ULID) when
	// empty.
	RunID string

	Task string // task description, recorded in the execution trace

	Completer llm.Completer
	Services  map[string]any

	// Decide is the externally supplied mutation-decision hook, consulted
	// first at every decision point.
	Decide func(justRan string, g model.Graph, st *state.State) model.Mutation

	Router      *route.Router
	Interviewer Interviewer
	Observers   Observers
	Logger      zerolog.Logger
	Metrics     *telemetry.Metrics
	Memory      *memory.Store

	// MaxIterations is a hard guard against scheduling bugs. Normal
	// termination comes from the visited set and the router's injection
	// caps, not from this limit.
	MaxIterations int
}

func (o *Options) applyDefaults() {
	if o.RunID == "" {
		o.RunID = ulid.Make().String()
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaultMaxIterations
	}
}

// Result is the outcome of a run that reached a stable topology.
type Result struct {
	RunID      string
	Iterations int
	State      *state.State
	Path       []string
	Graph      model.Graph // final topology after all mutations
	Mutations  []mutate.Entry
}

// Executor owns the run loop. One executor runs one graph at a time;
// execution is single-threaded and cooperative.
type Executor struct {
	opts    Options
	log     zerolog.Logger
	mlog    *mutate.Log
	reflect []string // reflection events for the trace
}

func New(opts Options) *Executor {
	opts.applyDefaults()
	return &Executor{
		opts: opts,
		log:  opts.Logger.With().Str("run_id", opts.RunID).Logger(),
		mlog: mutate.NewLog(opts.Logger),
	}
}

// Run executes the graph to a stable topology and returns the merged state.
// The initial state may be nil. A node failure aborts the whole run with no
// partial-state result.
func (e *Executor) Run(ctx context.Context, g model.Graph, initial *state.State) (*Result, error) {
	e.mlog = mutate.NewLog(e.opts.Logger)
	e.reflect = nil

	st := initial
	if st == nil {
		st = state.New()
	} else {
		st = st.Clone()
	}
	ec := model.NewExecContext(e.opts.Completer)
	for name, svc := range e.opts.Services {
		ec.WithService(name, svc)
	}

	current := g
	visited := map[string]bool{}
	iterations := 0

	for {
		iterations++
		if iterations > e.opts.MaxIterations {
			e.opts.Metrics.RunFinished("aborted")
			return nil, fmt.Errorf("engine: iteration guard tripped after %d iterations", e.opts.MaxIterations)
		}

		x, err := compile.Compile(current)
		if err != nil {
			e.opts.Metrics.RunFinished("aborted")
			return nil, err
		}
		order := x.Order()

		mutated := false
		for i, id := range order {
			if visited[id] {
				continue
			}
			if err := ctx.Err(); err != nil {
				e.opts.Metrics.RunFinished("canceled")
				return nil, err
			}

			delta, err := x.Run(ctx, id, st, ec)
			if err != nil {
				e.opts.Metrics.RunFinished("failed")
				var missing *compile.MissingInputError
				if errors.As(err, &missing) {
					return nil, err
				}
				return nil, &NodeError{NodeID: id, Err: err}
			}
			if delta == nil {
				delta = state.NewDelta()
			}
			st.Merge(id, delta)
			visited[id] = true
			e.opts.Metrics.NodeExecuted()
			e.opts.Observers.nodeExecuted(id, delta.Keys())
			e.log.Debug().Str("node", id).Strs("keys", delta.Keys()).Msg("node merged")

			res := x.Reflect(id, st)
			if res.Outcome != reflection.OutcomeSuccess {
				e.reflect = append(e.reflect, fmt.Sprintf("%s: %s (%s)", id, res.Outcome, res.Reason))
				e.opts.Observers.reflection(id, res)
			}
			e.opts.Metrics.Reflected(string(res.Outcome))

			m := e.decideMutation(ctx, x, st, ec, id, nextUnvisited(order, i+1, visited))
			if m.IsNone() {
				continue
			}
			before := current
			current = e.mlog.Apply(current, m)
			if m.Kind == model.MutationInject {
				for _, n := range m.NewNodes {
					if n != nil {
						st.BumpInjection(n.ID())
					}
				}
			}
			e.opts.Metrics.MutationApplied(string(m.Kind))
			e.opts.Observers.mutationApplied(m, before, current)
			mutated = true
			break
		}

		// No node produced a mutation: the topology is stable and the run
		// is complete.
		if !mutated {
			break
		}
	}

	e.opts.Metrics.RunFinished("stable")
	result := &Result{
		RunID:      e.opts.RunID,
		Iterations: iterations,
		State:      st,
		Path:       st.Path(),
		Graph:      current,
		Mutations:  e.mlog.Entries(),
	}
	e.recordTrace(current, st)
	return result, nil
}

// decideMutation consults, in priority order: the external decision hook,
// mutation requests the node queued on the execution context, then the
// uncertainty router's recommendation for the next scheduled node. The
// first non-none decision wins; the context queue is drained either way.
func (e *Executor) decideMutation(ctx context.Context, x *compile.Executable, st *state.State, ec *model.ExecContext, justRan, next string) model.Mutation {
	requested := ec.DrainMutations()

	if e.opts.Decide != nil {
		if m := e.opts.Decide(justRan, x.Graph(), st); !m.IsNone() {
			return m
		}
	}
	for _, m := range requested {
		if !m.IsNone() {
			return m
		}
	}
	if e.opts.Router == nil || next == "" {
		return model.NoMutation()
	}
	node, ok := x.Node(next)
	if !ok {
		return model.NoMutation()
	}

	d := e.opts.Router.Route(ctx, st, justRan, node)
	e.opts.Metrics.RouterDecided(string(d.Kind))
	e.opts.Observers.routerDecision(next, d)
	switch d.Kind {
	case route.DecisionMutate:
		return d.Mutation
	case route.DecisionAskUser:
		e.askUser(ctx, st, next, d)
		return model.NoMutation()
	case route.DecisionCaveat:
		appendCaveat(st, d.Reason)
		e.log.Info().Str("next", next).Str("reason", d.Reason).Msg("proceeding with caveat")
		return model.NoMutation()
	default:
		return model.NoMutation()
	}
}

// askUser routes a question through the interviewer and stores the answer
// at full confidence. Without an interviewer the question degrades to a
// caveat — execution never blocks on an absent collaborator.
func (e *Executor) askUser(ctx context.Context, st *state.State, next string, d route.Decision) {
	if e.opts.Interviewer == nil {
		appendCaveat(st, "unanswered question: "+d.Question)
		return
	}
	answer, err := e.opts.Interviewer.Ask(ctx, d.Question)
	if err != nil {
		appendCaveat(st, "interviewer failed: "+d.Question)
		return
	}
	key := "user.input." + next
	st.SetRaw(key, answer)
	st.SetConfidence(key, state.Confidence{Score: 1.0, Reason: "user supplied", Sources: []string{"user"}})
}

func appendCaveat(st *state.State, reason string) {
	caveats, _ := st.GetRaw("caveats")
	list, _ := caveats.([]string)
	st.SetRaw("caveats", append(list, reason))
}

func nextUnvisited(order []string, from int, visited map[string]bool) string {
	for _, id := range order[from:] {
		if !visited[id] {
			return id
		}
	}
	return ""
}

func (e *Executor) recordTrace(g model.Graph, st *state.State) {
	if e.opts.Memory == nil {
		return
	}
	e.opts.Memory.Record(memory.Trace{
		ID:               e.opts.RunID,
		Task:             e.opts.Task,
		Graph:            g,
		Path:             st.Path(),
		ReflectionEvents: append([]string{}, e.reflect...),
		Outcome:          "stable",
	})
}
