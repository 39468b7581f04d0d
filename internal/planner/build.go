package planner

import (
	"context"
	"errors"

	"github.com/aretw0/witmorph/pkg/domain"
)

// Build runs one full comparison and returns the combined plan steps with
// the per-entity errors. The returned error is reserved for invalid input
// and cancellation.
func Build(ctx context.Context, source, target *domain.ProcessTemplate, m *domain.Mapping, opts Options) ([]domain.Action, domain.PlanErrors, error) {
	if source == nil || target == nil {
		return nil, nil, errors.New("planner: source and target templates are required")
	}
	if m == nil {
		return nil, nil, errors.New("planner: mapping is required")
	}
	set := NewActionSet()
	errs, err := NewCollectionComparer(m, set, opts).Compare(ctx, source, target)
	if err != nil {
		return nil, nil, err
	}
	attrs := make([]any, 0, 2*domain.PhaseCount)
	for _, p := range domain.Phases() {
		attrs = append(attrs, p.String(), len(set.Bucket(p)))
	}
	opts.logger().Debug("plan built", attrs...)
	return set.Combine(), errs, nil
}
