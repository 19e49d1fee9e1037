package reflection

import (
	"github.com/danshapiro/reflow/internal/flow/state"
)

type Level string

const (
	LevelStrategic Level = "strategic"
	LevelTactical  Level = "tactical"
	LevelExecution Level = "execution"
)

// Levels lists evaluation order. Strategic concerns are checked first; the
// first non-success short-circuits.
var Levels = []Level{LevelStrategic, LevelTactical, LevelExecution}

// Evaluation is a level-tagged policy result.
type Evaluation struct {
	Result Result
	Level  Level
}

// Reflector evaluates success criteria at three fixed levels, each with an
// independent retry budget.
type Reflector struct {
	policies map[Level]Policy
}

func NewReflector(strategic, tactical, execution Policy) *Reflector {
	return &Reflector{policies: map[Level]Policy{
		LevelStrategic: strategic,
		LevelTactical:  tactical,
		LevelExecution: execution,
	}}
}

// Reflect runs the levels in priority order and returns the first
// non-success result tagged with its level. All-success returns success at
// the execution level. Retry budgets apply per level via Apply; a level
// whose budget is exhausted reads as success and evaluation continues.
func (r *Reflector) Reflect(st *state.State) Evaluation {
	for _, level := range Levels {
		res := Apply(r.policies[level], string(level), st)
		if res.Outcome != OutcomeSuccess {
			return Evaluation{Result: res, Level: level}
		}
	}
	return Evaluation{Result: Success(), Level: LevelExecution}
}
