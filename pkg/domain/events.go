package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepStart EventType = "step_start"
	EventStepDone  EventType = "step_done"
	EventStepSkip  EventType = "step_skip"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// StepEvent describes the execution of one plan step.
type StepEvent struct {
	EventBase
	PlanID   string        `json:"plan_id"`
	Index    int           `json:"index"`
	Kind     ActionKind    `json:"kind"`
	Phase    Phase         `json:"phase"`
	Entity   string        `json:"entity"`
	Affected int           `json:"affected"`
	Duration time.Duration `json:"duration,omitempty"`
	DryRun   bool          `json:"dry_run,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for executor observability.
type LifecycleHooks struct {
	OnStepStart func(context.Context, *StepEvent)
	OnStepDone  func(context.Context, *StepEvent)
}
