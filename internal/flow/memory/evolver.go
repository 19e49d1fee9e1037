package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/danshapiro/reflow/internal/flow/model"
	"github.com/danshapiro/reflow/internal/flow/synth"
)

// Heuristics are the fixed graph-improvement hints appended to every evolved
// synthesis request.
var Heuristics = []string{
	"remove nodes the past run never executed",
	"add nodes for inputs the past run was missing",
	"reorder nodes so every input is produced before it is required",
	"add reflection after nodes that needed intervention in the past run",
}

// Evolver composes graph-synthesis requests augmented with the most similar
// past trace. Augmentation is best-effort and never fatal: any failure
// returns the pre-augmentation graph untouched.
type Evolver struct {
	Store   *Store
	Service *synth.Service
}

// Evolve asks the synthesis service for an improved graph for the task. The
// single most similar past trace's outcome and path, plus the fixed
// heuristics, are folded into the request. On any failure the base graph is
// returned as-is.
func (e *Evolver) Evolve(ctx context.Context, task string, base model.Graph) model.Graph {
	if e == nil || e.Service == nil {
		return base
	}
	extra := e.guidance(task)
	return e.Service.SynthesizeWith(ctx, task, extra, base)
}

func (e *Evolver) guidance(task string) string {
	var b strings.Builder
	if e.Store != nil {
		if similar := e.Store.FindSimilar(task, 1); len(similar) > 0 {
			t := similar[0]
			fmt.Fprintf(&b, "A similar past task (%q) finished with outcome %q taking the path [%s].\n",
				t.Task, t.Outcome, strings.Join(t.Path, " -> "))
			if len(t.ReflectionEvents) > 0 {
				fmt.Fprintf(&b, "It needed intervention at: %s.\n", strings.Join(t.ReflectionEvents, "; "))
			}
		}
	}
	b.WriteString("Apply these heuristics:\n")
	for _, h := range Heuristics {
		fmt.Fprintf(&b, "- %s\n", h)
	}
	return b.String()
}
