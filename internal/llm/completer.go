// Package llm defines the completion-service boundary used by the flow core.
// The core only ever sees the Completer interface; concrete providers live
// alongside it so process wiring can pick one without touching the engine.
package llm

import (
	"context"
	"strings"
)

// Completer produces a single text completion for a prompt. Implementations
// own their timeout and retry policy; the flow core never retries a
// completion call itself.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Scripted returns each canned response in order, then repeats the last one.
// Used by tests and dry runs.
type Scripted struct {
	Responses []string
	calls     int
}

func (s *Scripted) Complete(_ context.Context, _ string) (string, error) {
	if len(s.Responses) == 0 {
		return "", nil
	}
	i := s.calls
	if i >= len(s.Responses) {
		i = len(s.Responses) - 1
	}
	s.calls++
	return strings.TrimSpace(s.Responses[i]), nil
}
