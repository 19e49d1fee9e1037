package llm

import (
	"context"
	"testing"
)

func TestScriptedRepeatsLastResponse(t *testing.T) {
	s := &Scripted{Responses: []string{"first", "  second  "}}
	want := []string{"first", "second", "second"}
	for i, w := range want {
		got, err := s.Complete(context.Background(), "prompt")
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if got != w {
			t.Fatalf("call %d: got %q, want %q", i, got, w)
		}
	}
}

func TestScriptedEmpty(t *testing.T) {
	s := &Scripted{}
	got, err := s.Complete(context.Background(), "prompt")
	if err != nil || got != "" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestCompleterFunc(t *testing.T) {
	var prompt string
	c := CompleterFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return "ok", nil
	})
	got, err := c.Complete(context.Background(), "hello")
	if err != nil || got != "ok" || prompt != "hello" {
		t.Fatalf("got=%q err=%v prompt=%q", got, err, prompt)
	}
}
