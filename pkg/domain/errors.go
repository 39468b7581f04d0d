package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnresolvedMappingReference is returned when a mapping names an entity,
// field or state absent from the source or target template.
var ErrUnresolvedMappingReference = errors.New("unresolved mapping reference")

// ErrAmbiguousCorrespondence is returned when more than one source element
// is mapped to the same target element.
var ErrAmbiguousCorrespondence = errors.New("ambiguous correspondence")

// ErrConflictingAction is returned when two decisions would rename and
// destroy the same identifier in incompatible ways.
var ErrConflictingAction = errors.New("conflicting action")

// ErrProgressNotFound is returned when no checkpoint exists for a plan.
var ErrProgressNotFound = errors.New("progress not found")

// ErrArchiveEntryNotFound is returned when an archive has no entry for a key.
var ErrArchiveEntryNotFound = errors.New("archive entry not found")

// ErrArchiveEntryExists is returned when an archive already holds an entry for a key.
var ErrArchiveEntryExists = errors.New("archive entry already exists")

// ErrUnpreservedDestroy is returned when a plan destroys a field or type
// that no earlier step exports.
var ErrUnpreservedDestroy = errors.New("destroy without a preceding export")

// ErrPlanHasErrors is returned when applying a plan that carries comparison errors.
var ErrPlanHasErrors = errors.New("plan has unresolved comparison errors")

// ErrFieldConflict is returned when a rename would overwrite an existing field value.
var ErrFieldConflict = errors.New("field already exists")

// ErrLockHeld is returned when another run holds the apply lock.
var ErrLockHeld = errors.New("lock held by another run")

// ErrorKind maps a comparison error to its stable wire name.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnresolvedMappingReference):
		return "unresolved_mapping_reference"
	case errors.Is(err, ErrAmbiguousCorrespondence):
		return "ambiguous_correspondence"
	case errors.Is(err, ErrConflictingAction):
		return "conflicting_action"
	default:
		return "unknown"
	}
}

func errorForKind(kind string) error {
	switch kind {
	case "unresolved_mapping_reference":
		return ErrUnresolvedMappingReference
	case "ambiguous_correspondence":
		return ErrAmbiguousCorrespondence
	case "conflicting_action":
		return ErrConflictingAction
	default:
		return nil
	}
}

// EntityError attaches a comparison error to the entity pair that produced it.
type EntityError struct {
	Source string
	Target string
	Err    error
}

func (e *EntityError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("entity %q: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("entity %q -> %q: %v", e.Source, e.Target, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// StepError reports an execution failure at a given plan step.
type StepError struct {
	Index  int
	Action Action
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Action, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// PlanErrors aggregates the per-entity errors of one comparison run.
type PlanErrors []*EntityError

func (pe PlanErrors) Error() string {
	msgs := make([]string, len(pe))
	for i, e := range pe {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d comparison errors:\n- %s", len(pe), strings.Join(msgs, "\n- "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (pe PlanErrors) Unwrap() []error {
	errs := make([]error, len(pe))
	for i, e := range pe {
		errs[i] = e
	}
	return errs
}

// Err returns pe as an error, or nil when empty.
func (pe PlanErrors) Err() error {
	if len(pe) == 0 {
		return nil
	}
	return pe
}

// decodedError restores a comparison error read back from a plan document.
type decodedError struct {
	kind error
	msg  string
}

func (e *decodedError) Error() string { return e.msg }
func (e *decodedError) Unwrap() error { return e.kind }
