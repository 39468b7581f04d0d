package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/witmorph/internal/logging"
	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/ports"
)

// Option configures an Executor.
type Option func(*Executor)

// WithArchive sets where ExportData steps write. Plans with exports fail without one.
func WithArchive(a ports.Archive) Option {
	return func(e *Executor) {
		e.archive = a
	}
}

// WithProgressStore enables checkpoints so a halted run resumes where it stopped.
func WithProgressStore(p ports.ProgressStore) Option {
	return func(e *Executor) {
		e.progress = p
	}
}

// WithLocker guards each run with a distributed lock on the plan ID.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Executor) {
		e.locker = l
		e.lockTTL = ttl
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDryRun reports the steps without touching the store, archive or checkpoint.
func WithDryRun(enabled bool) Option {
	return func(e *Executor) {
		e.dryRun = enabled
	}
}

// WithRestart ignores any checkpoint and applies every step again.
func WithRestart(enabled bool) Option {
	return func(e *Executor) {
		e.restart = enabled
	}
}

// WithAllowPartial lets a plan that carries comparison errors run anyway.
func WithAllowPartial(enabled bool) Option {
	return func(e *Executor) {
		e.allowPartial = enabled
	}
}

const defaultLockTTL = 5 * time.Minute

func defaults(e *Executor) {
	e.logger = logging.NewNop()
	e.lockTTL = defaultLockTTL
}
