package mutate

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danshapiro/reflow/internal/flow/model"
)

// Entry records one applied mutation with its before/after topology
// fingerprints, enough to reconstruct the run's structural history.
type Entry struct {
	Seq       int
	Applied   time.Time
	Mutation  model.Mutation
	Summary   string
	BeforeFPR string
	AfterFPR  string
}

// Log applies mutations while keeping a human-readable, append-only record.
// Safe to ignore entirely: Apply remains usable on its own.
type Log struct {
	mu      sync.Mutex
	logger  zerolog.Logger
	entries []Entry
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

// Apply transforms the graph and appends a log entry. A none mutation is
// logged but leaves the graph untouched.
func (l *Log) Apply(g model.Graph, m model.Mutation) model.Graph {
	out := Apply(g, m)
	e := Entry{
		Applied:   time.Now().UTC(),
		Mutation:  m,
		Summary:   m.String(),
		BeforeFPR: g.Fingerprint(),
		AfterFPR:  out.Fingerprint(),
	}
	l.mu.Lock()
	e.Seq = len(l.entries) + 1
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	l.logger.Info().
		Int("seq", e.Seq).
		Str("kind", string(m.Kind)).
		Str("before", e.BeforeFPR).
		Str("after", e.AfterFPR).
		Msg(e.Summary)
	return out
}

func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry{}, l.entries...)
}
