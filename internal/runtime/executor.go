// Package runtime applies migration plans to a record store, one step at a time.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/ports"
)

// Executor applies plans strictly sequentially.
type Executor struct {
	store        ports.RecordStore
	archive      ports.Archive
	progress     ports.ProgressStore
	locker       ports.DistributedLocker
	lockTTL      time.Duration
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	dryRun       bool
	restart      bool
	allowPartial bool
}

// NewExecutor creates an executor for store.
func NewExecutor(store ports.RecordStore, opts ...Option) *Executor {
	e := &Executor{store: store}
	defaults(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StepResult is the outcome of one plan step.
type StepResult struct {
	Index    int
	Action   domain.Action
	Affected int
	Skipped  bool
	Location string
	Duration time.Duration
}

// Report summarizes a run. On failure it holds the steps that completed.
type Report struct {
	PlanID  string
	RunID   string
	DryRun  bool
	Resumed int
	Steps   []StepResult
}

// Applied returns how many steps ran in this run.
func (r *Report) Applied() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Skipped {
			n++
		}
	}
	return n
}

// Affected returns the total records touched.
func (r *Report) Affected() int {
	n := 0
	for _, s := range r.Steps {
		n += s.Affected
	}
	return n
}

// Run applies plan. A failing step halts the run and is returned as a
// *domain.StepError; the checkpoint then points at that step.
func (e *Executor) Run(ctx context.Context, plan *domain.Plan) (*Report, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan cannot be nil")
	}
	if plan.ID == "" {
		return nil, fmt.Errorf("plan has no id")
	}
	if plan.HasErrors() && !e.allowPartial {
		return nil, fmt.Errorf("%w: %d entities failed comparison", domain.ErrPlanHasErrors, len(plan.Errors))
	}
	if err := checkPreserved(plan.Steps); err != nil {
		return nil, err
	}

	report := &Report{PlanID: plan.ID, RunID: uuid.NewString(), DryRun: e.dryRun}
	logger := e.logger.With("plan_id", plan.ID, "run_id", report.RunID)

	if e.locker != nil && !e.dryRun {
		unlock, err := e.locker.Lock(ctx, plan.ID, e.lockTTL)
		if err != nil {
			return report, fmt.Errorf("failed to lock plan %s: %w", plan.ID, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release plan lock", "err", err)
			}
		}()
	}

	start, err := e.resumePoint(ctx, plan)
	if err != nil {
		return report, err
	}
	report.Resumed = start
	if start > 0 {
		logger.Info("resuming from checkpoint", "completed", start, "total", len(plan.Steps))
	}

	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ev := e.event(plan, report.RunID, i, step)

		if i < start {
			ev.Type = domain.EventStepSkip
			e.emitDone(ctx, ev)
			report.Steps = append(report.Steps, StepResult{Index: i, Action: step, Skipped: true})
			continue
		}

		e.emitStart(ctx, ev)
		began := time.Now()
		var res StepResult
		if e.dryRun {
			res = StepResult{Index: i, Action: step}
		} else {
			res, err = e.apply(ctx, plan.ID, i, step)
		}
		res.Duration = time.Since(began)

		ev.Type = domain.EventStepDone
		ev.Timestamp = time.Now()
		ev.Affected = res.Affected
		ev.Duration = res.Duration
		ev.Err = err
		e.emitDone(ctx, ev)

		if err != nil {
			return report, &domain.StepError{Index: i, Action: step, Err: err}
		}
		report.Steps = append(report.Steps, res)

		if err := e.checkpoint(ctx, plan, report.RunID, i+1); err != nil {
			return report, err
		}
	}

	logger.Info("plan applied", "steps", len(plan.Steps), "applied", report.Applied(), "affected", report.Affected())
	return report, nil
}

// checkPreserved verifies that every destroyed field or type is covered by
// an export earlier in the plan. Destroyed states carry no data of their own.
func checkPreserved(steps []domain.Action) error {
	for i, s := range steps {
		d, ok := s.(domain.Destroy)
		if !ok || d.Target.Kind == domain.IdentityState {
			continue
		}
		covered := false
		for _, prev := range steps[:i] {
			x, ok := prev.(domain.ExportData)
			if !ok || x.Type != d.Target.Type {
				continue
			}
			if x.AllFields || (d.Target.Kind == domain.IdentityField && x.Covers(d.Target.Element())) {
				covered = true
				break
			}
		}
		if !covered {
			return &domain.StepError{Index: i, Action: s, Err: fmt.Errorf("%w: %s", domain.ErrUnpreservedDestroy, d.Target)}
		}
	}
	return nil
}

func (e *Executor) resumePoint(ctx context.Context, plan *domain.Plan) (int, error) {
	if e.progress == nil || e.restart || e.dryRun {
		return 0, nil
	}
	p, err := e.progress.Load(ctx, plan.ID)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if p.Total != len(plan.Steps) || p.Completed > p.Total {
		return 0, fmt.Errorf("checkpoint for plan %s covers %d of %d steps but the plan has %d; rerun with restart",
			plan.ID, p.Completed, p.Total, len(plan.Steps))
	}
	return p.Completed, nil
}

func (e *Executor) checkpoint(ctx context.Context, plan *domain.Plan, runID string, completed int) error {
	if e.progress == nil || e.dryRun {
		return nil
	}
	err := e.progress.Save(ctx, plan.ID, &domain.Progress{
		PlanID:    plan.ID,
		RunID:     runID,
		Completed: completed,
		Total:     len(plan.Steps),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint after step %d: %w", completed-1, err)
	}
	return nil
}

func (e *Executor) event(plan *domain.Plan, runID string, i int, step domain.Action) *domain.StepEvent {
	return &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStepStart, RunID: runID},
		PlanID:    plan.ID,
		Index:     i,
		Kind:      step.Kind(),
		Phase:     step.Phase(),
		Entity:    domain.EntityOf(step),
		DryRun:    e.dryRun,
	}
}

func (e *Executor) emitStart(ctx context.Context, ev *domain.StepEvent) {
	if e.hooks.OnStepStart != nil {
		e.hooks.OnStepStart(ctx, ev)
	}
}

func (e *Executor) emitDone(ctx context.Context, ev *domain.StepEvent) {
	if e.hooks.OnStepDone != nil {
		e.hooks.OnStepDone(ctx, ev)
	}
}
