// Package memory stores execution traces and ranks them by task similarity,
// feeding the graph-evolution loop. It sits outside the hot execution path:
// nothing here can slow down or fail a running graph.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/danshapiro/reflow/internal/flow/model"
)

// Trace records one completed run. GraphFingerprint identifies the topology
// that actually ran (post-mutation).
type Trace struct {
	ID               string
	Task             string
	Graph            model.Graph
	GraphFingerprint string
	Path             []string
	ReflectionEvents []string
	Outcome          string
	Timestamp        time.Time
}

// Store is an in-memory ordered trace log. No eviction: its lifetime matches
// the process, a known scope limitation.
type Store struct {
	mu     sync.Mutex
	traces []Trace
}

func NewStore() *Store { return &Store{} }

// Record appends a trace, assigning an ID and timestamp when absent.
func (s *Store) Record(t Trace) Trace {
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	if t.GraphFingerprint == "" {
		t.GraphFingerprint = t.Graph.Fingerprint()
	}
	s.mu.Lock()
	s.traces = append(s.traces, t)
	s.mu.Unlock()
	return t
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.traces)
}

func (s *Store) All() []Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Trace{}, s.traces...)
}

// FindSimilar ranks stored traces by token-set Jaccard similarity to the
// task description, descending; ties break toward the more recent trace.
func (s *Store) FindSimilar(task string, limit int) []Trace {
	if limit <= 0 {
		return nil
	}
	query := tokens(task)

	s.mu.Lock()
	scored := make([]scoredTrace, 0, len(s.traces))
	for i, t := range s.traces {
		scored = append(scored, scoredTrace{trace: t, score: jaccard(query, tokens(t.Task)), idx: i})
	}
	s.mu.Unlock()

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].idx > scored[j].idx
	})
	if limit > len(scored) {
		limit = len(scored)
	}
	out := make([]Trace, 0, limit)
	for _, st := range scored[:limit] {
		out = append(out, st.trace)
	}
	return out
}

type scoredTrace struct {
	trace Trace
	score float64
	idx   int
}

func tokens(s string) map[string]bool {
	out := map[string]bool{}
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,;:!?\"'()[]{}")
		if f != "" {
			out[f] = true
		}
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
