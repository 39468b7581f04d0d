package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/witmorph/pkg/domain"
)

// Hooks returns lifecycle hooks that log each step with logger and, when
// metrics is non-nil, record it. Either argument may be nil.
func Hooks(logger *slog.Logger, metrics *Metrics) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			if logger != nil {
				logger.DebugContext(ctx, "step_start", stepAttrs(e)...)
			}
		},
		OnStepDone: func(ctx context.Context, e *domain.StepEvent) {
			if logger != nil {
				attrs := append(stepAttrs(e), "affected", e.Affected, "duration", e.Duration)
				switch {
				case e.Err != nil:
					logger.ErrorContext(ctx, "step_failed", append(attrs, "err", e.Err)...)
				case e.Type == domain.EventStepSkip:
					logger.InfoContext(ctx, "step_skipped", attrs...)
				default:
					logger.InfoContext(ctx, "step_done", attrs...)
				}
			}
			if metrics != nil {
				kind := string(e.Kind)
				metrics.Steps.WithLabelValues(kind, e.Phase.String(), outcome(e)).Inc()
				if e.Type == domain.EventStepDone && e.Err == nil {
					metrics.Affected.WithLabelValues(kind).Add(float64(e.Affected))
					metrics.Duration.WithLabelValues(kind).Observe(e.Duration.Seconds())
				}
			}
		},
	}
}

func stepAttrs(e *domain.StepEvent) []any {
	attrs := []any{
		"plan_id", e.PlanID,
		"run_id", e.RunID,
		"step", e.Index,
		"kind", e.Kind,
		"phase", e.Phase.String(),
		"entity", e.Entity,
	}
	if e.DryRun {
		attrs = append(attrs, "dry_run", true)
	}
	return attrs
}

func outcome(e *domain.StepEvent) string {
	switch {
	case e.Err != nil:
		return "error"
	case e.Type == domain.EventStepSkip:
		return "skipped"
	case e.DryRun:
		return "dry_run"
	default:
		return "applied"
	}
}
