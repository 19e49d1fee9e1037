// Package state implements the typed key/value store shared by graph nodes.
//
// Values are written by the executor merging node deltas; nodes only ever see
// a read-only Snapshot. Keys are namespaced strings; a Key[T] binds a name to
// its static type so accessors recover the type at the boundary.
package state

import (
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Key is a typed handle for a state entry. The zero value is unusable;
// construct with NewKey.
type Key[T any] struct {
	name string
}

func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

func (k Key[T]) Name() string { return k.name }

// Confidence annotates a state key with how trustworthy its value is.
// Score is in [0,1]; 1.0 means fully confident.
type Confidence struct {
	Score   float64  `json:"score"`
	Reason  string   `json:"reason,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// Reader is the read surface shared by State and Snapshot.
type Reader interface {
	GetRaw(name string) (any, bool)
	Has(name string) bool
	ConfidenceOf(name string) (Confidence, bool)
	MinimumConfidence(names []string) float64
	InjectionCount(nodeID string) int
	Path() []string
	Keys() []string
	MatchKeys(pattern string) []string
}

// Get recovers a typed value from any Reader. A value stored under the key's
// name with a different dynamic type reads as absent.
func Get[T any](r Reader, k Key[T]) (T, bool) {
	var zero T
	raw, ok := r.GetRaw(k.name)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set writes a typed value. Writes with an existing key fully replace the
// prior value.
func Set[T any](s *State, k Key[T], v T) {
	s.SetRaw(k.name, v)
}

// State is the ordered accumulation of node outputs for one run. It is owned
// exclusively by the executor; nodes receive snapshots and return deltas.
// No locking: execution is single-threaded by design.
type State struct {
	values     map[string]any
	order      []string
	path       []string
	confidence map[string]Confidence
	injections map[string]int
}

func New() *State {
	return &State{
		values:     map[string]any{},
		confidence: map[string]Confidence{},
		injections: map[string]int{},
	}
}

func (s *State) GetRaw(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

func (s *State) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

func (s *State) SetRaw(name string, v any) {
	if _, ok := s.values[name]; !ok {
		s.order = append(s.order, name)
	}
	s.values[name] = v
}

// Keys returns key names in first-write order.
func (s *State) Keys() []string {
	return append([]string{}, s.order...)
}

// MatchKeys returns the key names matching a doublestar glob, in first-write
// order. Invalid patterns match nothing.
func (s *State) MatchKeys(pattern string) []string {
	var out []string
	for _, name := range s.order {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return nil
		}
		if ok {
			out = append(out, name)
		}
	}
	return out
}

func (s *State) ConfidenceOf(name string) (Confidence, bool) {
	c, ok := s.confidence[name]
	return c, ok
}

func (s *State) SetConfidence(name string, c Confidence) {
	s.confidence[name] = c
}

// MinimumConfidence returns the lowest confidence score across the named
// keys. Keys without a confidence record (including absent keys) count as
// fully confident: input presence is the compiler's concern, not this
// store's. An empty key set returns 1.0.
func (s *State) MinimumConfidence(names []string) float64 {
	min := 1.0
	for _, name := range names {
		if c, ok := s.confidence[name]; ok && c.Score < min {
			min = c.Score
		}
	}
	return min
}

// Merge applies a node's delta last-writer-wins and appends the node to the
// action path. Confidence rides with the write: an unannotated overwrite
// clears any previous annotation, so the key reads as fully confident again.
// An empty delta still records the visit.
func (s *State) Merge(nodeID string, d *Delta) {
	if d != nil {
		for _, name := range d.order {
			s.SetRaw(name, d.values[name])
			if _, ok := d.confidence[name]; !ok {
				delete(s.confidence, name)
			}
		}
		for name, c := range d.confidence {
			s.confidence[name] = c
		}
	}
	s.path = append(s.path, nodeID)
}

// Path returns the ordered list of node IDs executed so far.
func (s *State) Path() []string {
	return append([]string{}, s.path...)
}

func (s *State) InjectionCount(nodeID string) int {
	return s.injections[nodeID]
}

// BumpInjection increments the per-node injection counter and returns the
// new count. The uncertainty router reads these counts to enforce caps.
func (s *State) BumpInjection(nodeID string) int {
	s.injections[nodeID]++
	return s.injections[nodeID]
}

// Snapshot returns an immutable deep view of the current state. Later merges
// are not visible through it.
func (s *State) Snapshot() *Snapshot {
	return &Snapshot{s: s.Clone()}
}

// Clone deep-copies the store, including path and injection bookkeeping.
func (s *State) Clone() *State {
	c := &State{
		values:     make(map[string]any, len(s.values)),
		order:      append([]string{}, s.order...),
		path:       append([]string{}, s.path...),
		confidence: make(map[string]Confidence, len(s.confidence)),
		injections: make(map[string]int, len(s.injections)),
	}
	for k, v := range s.values {
		c.values[k] = v
	}
	for k, v := range s.confidence {
		c.confidence[k] = v
	}
	for k, v := range s.injections {
		c.injections[k] = v
	}
	return c
}

// Summary renders key names with confidence scores, sorted, for logs and
// trace records.
func (s *State) Summary() string {
	names := append([]string{}, s.order...)
	sort.Strings(names)
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		if c, ok := s.confidence[name]; ok {
			out += fmt.Sprintf("%s(%.2f)", name, c.Score)
		} else {
			out += name
		}
	}
	return out
}

// Snapshot is the read-only view handed to executing nodes.
type Snapshot struct {
	s *State
}

func (sn *Snapshot) GetRaw(name string) (any, bool)          { return sn.s.GetRaw(name) }
func (sn *Snapshot) Has(name string) bool                    { return sn.s.Has(name) }
func (sn *Snapshot) ConfidenceOf(name string) (Confidence, bool) {
	return sn.s.ConfidenceOf(name)
}
func (sn *Snapshot) MinimumConfidence(names []string) float64 { return sn.s.MinimumConfidence(names) }
func (sn *Snapshot) InjectionCount(nodeID string) int         { return sn.s.InjectionCount(nodeID) }
func (sn *Snapshot) Path() []string                           { return sn.s.Path() }
func (sn *Snapshot) Keys() []string                           { return sn.s.Keys() }
func (sn *Snapshot) MatchKeys(pattern string) []string        { return sn.s.MatchKeys(pattern) }
