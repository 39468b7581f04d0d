package planner

import (
	"log/slog"

	"github.com/aretw0/witmorph/internal/logging"
)

// Options tunes a comparison run.
type Options struct {
	// DestroyUnmappedStates emits Destroy for source states that are
	// neither mapped nor present in the target workflow.
	DestroyUnmappedStates bool
	// Parallel compares entity pairs concurrently. Output is identical to
	// a sequential run.
	Parallel bool
	// Workers bounds concurrency in parallel mode. Zero means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.NewNop()
}
