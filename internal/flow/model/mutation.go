package model

import (
	"fmt"
	"strings"
)

type MutationKind string

const (
	MutationNone    MutationKind = "none"
	MutationInject  MutationKind = "inject"
	MutationPrune   MutationKind = "prune"
	MutationReroute MutationKind = "reroute"
)

// Mutation is a record describing one structural change. Applying it is a
// pure Graph→Graph transformation (see the mutate package); the record never
// executes nodes.
type Mutation struct {
	Kind     MutationKind
	After    string // inject: anchor node
	NewNodes []Node // inject: spliced in order
	NodeIDs  []string
	From, To string // reroute
	Reason   string
}

func NoMutation() Mutation { return Mutation{Kind: MutationNone} }

func Inject(after string, nodes []Node, reason string) Mutation {
	return Mutation{Kind: MutationInject, After: after, NewNodes: append([]Node{}, nodes...), Reason: reason}
}

func Prune(nodeIDs []string, reason string) Mutation {
	return Mutation{Kind: MutationPrune, NodeIDs: append([]string{}, nodeIDs...), Reason: reason}
}

func Reroute(from, to, reason string) Mutation {
	return Mutation{Kind: MutationReroute, From: from, To: to, Reason: reason}
}

func (m Mutation) IsNone() bool {
	return m.Kind == "" || m.Kind == MutationNone
}

// String renders a human-readable log entry for the mutation.
func (m Mutation) String() string {
	switch m.Kind {
	case MutationInject:
		ids := make([]string, 0, len(m.NewNodes))
		for _, n := range m.NewNodes {
			if n != nil {
				ids = append(ids, n.ID())
			}
		}
		return fmt.Sprintf("inject [%s] after %s: %s", strings.Join(ids, ", "), m.After, m.Reason)
	case MutationPrune:
		return fmt.Sprintf("prune [%s]: %s", strings.Join(m.NodeIDs, ", "), m.Reason)
	case MutationReroute:
		return fmt.Sprintf("reroute %s -> %s: %s", m.From, m.To, m.Reason)
	default:
		return "none"
	}
}
