package witmorph

import (
	"github.com/aretw0/witmorph/internal/runtime"
	"github.com/aretw0/witmorph/pkg/ports"
)

// Executor applies plans to a record store one step at a time.
type Executor = runtime.Executor

// Report summarizes one run of an Executor.
type Report = runtime.Report

// StepResult is the outcome of one applied or skipped step.
type StepResult = runtime.StepResult

// ExecutorOption configures an Executor.
type ExecutorOption = runtime.Option

var (
	WithArchive        = runtime.WithArchive
	WithProgressStore  = runtime.WithProgressStore
	WithLocker         = runtime.WithLocker
	WithLifecycleHooks = runtime.WithLifecycleHooks
	WithExecutorLogger = runtime.WithLogger
	WithDryRun         = runtime.WithDryRun
	WithRestart        = runtime.WithRestart
	WithAllowPartial   = runtime.WithAllowPartial
)

// NewExecutor creates an executor for store.
func NewExecutor(store ports.RecordStore, opts ...ExecutorOption) *Executor {
	return runtime.NewExecutor(store, opts...)
}
