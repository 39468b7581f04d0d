package witmorph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/witmorph/internal/planner"
	"github.com/aretw0/witmorph/internal/validator"
	"github.com/aretw0/witmorph/pkg/adapters/file"
	loamAdapter "github.com/aretw0/witmorph/pkg/adapters/loam"
	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/observability"
	"github.com/aretw0/witmorph/pkg/ports"
)

// Planner is the high-level entry point for computing migration plans.
type Planner struct {
	opts    planner.Options
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
	newID   func() string
}

// Option defines a functional option for configuring the Planner.
type Option func(*Planner)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		p.logger = logger
	}
}

// WithMetrics counts computed plans.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Planner) {
		p.metrics = m
	}
}

// WithDestroyUnmappedStates schedules a Destroy for source states that are
// neither mapped nor present in the target workflow.
func WithDestroyUnmappedStates(enabled bool) Option {
	return func(p *Planner) {
		p.opts.DestroyUnmappedStates = enabled
	}
}

// WithParallel compares entity pairs concurrently with up to workers
// goroutines (0 means GOMAXPROCS). The plan is identical to a sequential run.
func WithParallel(workers int) Option {
	return func(p *Planner) {
		p.opts.Parallel = true
		p.opts.Workers = workers
	}
}

// New creates a Planner.
func New(opts ...Option) *Planner {
	p := &Planner{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	// Ensure logger is initialized so the comparers never log to nil.
	if p.logger == nil {
		p.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	p.opts.Logger = p.logger
	return p
}

// Plan compares source and target under m and returns the ordered plan.
// Entities whose comparison failed are listed in plan.Errors and contribute
// no steps; err is reserved for unusable input or cancellation.
func (p *Planner) Plan(ctx context.Context, source, target *domain.ProcessTemplate, m *domain.Mapping) (*domain.Plan, error) {
	steps, errs, err := planner.Build(ctx, source, target, m, p.opts)
	if err != nil {
		return nil, err
	}
	plan := &domain.Plan{
		ID:        p.newID(),
		Source:    source.Label(),
		Target:    target.Label(),
		CreatedAt: p.now(),
		Steps:     steps,
		Errors:    errs,
	}
	p.metrics.ObservePlan(plan.HasErrors())

	logger := p.logger.With("plan_id", plan.ID, "source", plan.Source, "target", plan.Target)
	if plan.HasErrors() {
		logger.Warn("plan computed with errors", "steps", len(steps), "errors", len(errs))
	} else {
		logger.Info("plan computed", "steps", len(steps))
	}
	return plan, nil
}

// PlanFrom loads both templates and the mapping, then plans.
func (p *Planner) PlanFrom(ctx context.Context, source, target ports.TemplateLoader, mapping ports.MappingSource) (*domain.Plan, error) {
	src, tgt, m, err := load(ctx, source, target, mapping)
	if err != nil {
		return nil, err
	}
	return p.Plan(ctx, src, tgt, m)
}

// PlanFiles plans from paths. A template path may be a YAML/JSON file or a
// directory with one document per entity type; the mapping is a file.
func (p *Planner) PlanFiles(ctx context.Context, sourcePath, targetPath, mappingPath string) (*domain.Plan, error) {
	src, err := OpenTemplate(sourcePath)
	if err != nil {
		return nil, err
	}
	tgt, err := OpenTemplate(targetPath)
	if err != nil {
		return nil, err
	}
	return p.PlanFrom(ctx, src, tgt, file.NewMappingSource(mappingPath))
}

// Validate checks both templates and the mapping without planning.
func (p *Planner) Validate(ctx context.Context, source, target *domain.ProcessTemplate, m *domain.Mapping) error {
	return validator.ValidateMapping(ctx, source, target, m)
}

// ValidateTemplate checks a single template for structural defects.
func ValidateTemplate(t *domain.ProcessTemplate) error {
	return validator.ValidateTemplate(t)
}

// OpenTemplate returns a loader for path: a Loam directory or a single file.
func OpenTemplate(path string) (ports.TemplateLoader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	if info.IsDir() {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		return loamAdapter.Open(abs)
	}
	return file.NewTemplateLoader(path), nil
}

func load(ctx context.Context, source, target ports.TemplateLoader, mapping ports.MappingSource) (*domain.ProcessTemplate, *domain.ProcessTemplate, *domain.Mapping, error) {
	src, err := source.Load(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load source template: %w", err)
	}
	tgt, err := target.Load(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load target template: %w", err)
	}
	m, err := mapping.Mapping(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load mapping: %w", err)
	}
	return src, tgt, m, nil
}
