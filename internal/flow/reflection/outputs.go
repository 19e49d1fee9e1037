package reflection

import (
	"fmt"

	"github.com/danshapiro/reflow/internal/flow/state"
)

// OutputCheck builds the standard declarative policy used by graph files and
// synthesized graphs: after the node runs, every declared output must be
// present with confidence at or above the threshold, else the node is
// refined (re-targeted) with the first deficiency as the reason.
func OutputCheck(nodeID string, outputs []string, threshold float64, maxRetries int, escalation Strategy) Policy {
	outs := append([]string{}, outputs...)
	return Policy{
		MaxRetries: maxRetries,
		Escalation: escalation,
		Evaluate: func(st *state.State) Result {
			for _, key := range outs {
				if !st.Has(key) {
					return Refine(nodeID, fmt.Sprintf("expected output %q missing", key))
				}
				if c, ok := st.ConfidenceOf(key); ok && c.Score < threshold {
					return Refine(nodeID, fmt.Sprintf("output %q confidence %.2f below %.2f", key, c.Score, threshold))
				}
			}
			return Success()
		},
	}
}
