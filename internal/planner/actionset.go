package planner

import (
	"github.com/aretw0/witmorph/pkg/domain"
)

// ActionSet accumulates the actions of one planning run in phase buckets.
// It is owned by a single comparison run and must not be shared across runs.
type ActionSet struct {
	buckets [domain.PhaseCount][]domain.Action
}

// NewActionSet returns an empty action set.
func NewActionSet() *ActionSet {
	return &ActionSet{}
}

// Add appends each action to the bucket of its phase, keeping insertion order.
func (s *ActionSet) Add(actions ...domain.Action) {
	for _, a := range actions {
		p := a.Phase()
		if !p.Valid() {
			panic("planner: action with invalid phase " + p.String())
		}
		s.buckets[p-1] = append(s.buckets[p-1], a)
	}
}

// Len returns the number of actions in the set.
func (s *ActionSet) Len() int {
	n := 0
	for _, b := range s.buckets {
		n += len(b)
	}
	return n
}

// Bucket returns a copy of the actions of a single phase.
func (s *ActionSet) Bucket(p domain.Phase) []domain.Action {
	if !p.Valid() {
		return nil
	}
	return append([]domain.Action(nil), s.buckets[p-1]...)
}

// Combine returns the buckets concatenated in ascending phase order.
// The set is left untouched; repeated calls return identical sequences.
func (s *ActionSet) Combine() []domain.Action {
	out := make([]domain.Action, 0, s.Len())
	for _, b := range s.buckets {
		out = append(out, b...)
	}
	return out
}
