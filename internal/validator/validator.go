package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/witmorph/internal/planner"
	"github.com/aretw0/witmorph/pkg/domain"
)

// ValidateTemplate checks a single template for duplicate type names,
// duplicate field references and transitions between unknown states.
func ValidateTemplate(t *domain.ProcessTemplate) error {
	if t == nil {
		return fmt.Errorf("template cannot be nil")
	}

	var errors []string
	types := make(map[string]bool, len(t.Entities))
	for _, et := range t.Entities {
		if et.Name == "" {
			errors = append(errors, "Entity type with empty name")
			continue
		}
		if types[et.Name] {
			errors = append(errors, fmt.Sprintf("Duplicate entity type: '%s'", et.Name))
		}
		types[et.Name] = true

		refs := make(map[string]bool, len(et.Fields))
		for _, f := range et.Fields {
			if f.RefName == "" {
				errors = append(errors, fmt.Sprintf("Field with empty reference name in '%s'", et.Name))
				continue
			}
			if refs[f.RefName] {
				errors = append(errors, fmt.Sprintf("Duplicate field '%s' in '%s'", f.RefName, et.Name))
			}
			refs[f.RefName] = true
		}

		states := make(map[string]bool, len(et.Workflow.States))
		for _, s := range et.Workflow.States {
			if states[s] {
				errors = append(errors, fmt.Sprintf("Duplicate state '%s' in '%s'", s, et.Name))
			}
			states[s] = true
		}
		for _, tr := range et.Workflow.Transitions {
			// An empty From is the creation transition.
			if tr.From != "" && !states[tr.From] {
				errors = append(errors, fmt.Sprintf("Transition from unknown state '%s' in '%s'", tr.From, et.Name))
			}
			if !states[tr.To] {
				errors = append(errors, fmt.Sprintf("Transition to unknown state '%s' in '%s'", tr.To, et.Name))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errors), strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateMapping checks both templates and then the mapping between them.
// Mapping problems come back as domain.PlanErrors, so callers can match
// the error kinds with errors.Is.
func ValidateMapping(ctx context.Context, source, target *domain.ProcessTemplate, m *domain.Mapping) error {
	if err := ValidateTemplate(source); err != nil {
		return fmt.Errorf("source template: %w", err)
	}
	if err := ValidateTemplate(target); err != nil {
		return fmt.Errorf("target template: %w", err)
	}
	_, errs, err := planner.Build(ctx, source, target, m, planner.Options{})
	if err != nil {
		return err
	}
	return errs.Err()
}
