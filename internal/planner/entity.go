package planner

import (
	"fmt"

	"github.com/aretw0/witmorph/pkg/domain"
)

// EntityComparer decides the actions needed to move one source entity type
// onto its mapped target. It only reads its inputs.
type EntityComparer struct {
	opts Options
}

// NewEntityComparer returns a comparer using the given options.
func NewEntityComparer(opts Options) *EntityComparer {
	return &EntityComparer{opts: opts}
}

// Compare returns the phase-tagged actions for one entity pair.
// tgt is ignored when m retires the source type.
// When any error is found the entity yields no actions at all, so a broken
// mapping can never schedule a destroy for data it failed to account for.
func (c *EntityComparer) Compare(src, tgt *domain.EntityType, m *domain.EntityMap) ([]domain.Action, []error) {
	if m.Retired() {
		return c.retire(src, m)
	}

	var (
		actions []domain.Action
		errs    []error
	)
	final := tgt.Name
	if src.Name != tgt.Name {
		actions = append(actions, domain.Rename{Target: domain.TypeIdentity(src.Name), NewName: tgt.Name})
	}

	errs = append(errs, checkFieldMaps(src, tgt, m)...)
	errs = append(errs, checkStateMaps(src, tgt, m)...)
	errs = append(errs, checkCopyRules(src, tgt, m)...)

	var retired []string
	for _, f := range src.Fields {
		to, ok := m.TargetFieldFor(f.RefName)
		if ok {
			if to == f.RefName {
				continue
			}
			if src.HasField(to) {
				errs = append(errs, fmt.Errorf("%w: field %q renamed to %q, which %q still holds",
					domain.ErrConflictingAction, f.RefName, to, src.Name))
				continue
			}
			actions = append(actions, domain.Rename{Target: domain.FieldIdentity(final, f.RefName), NewName: to})
			continue
		}
		if tgt.HasField(f.RefName) {
			continue
		}
		retired = append(retired, f.RefName)
	}

	if len(retired) > 0 {
		actions = append(actions, domain.NewExportFields(final, retired...))
	}

	for _, rule := range m.Copies {
		from, to, err := resolveCopy(src, tgt, m, rule)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if from == to {
			continue
		}
		actions = append(actions, domain.CopyData{Type: final, From: from, To: to})
	}

	for _, ref := range retired {
		actions = append(actions, domain.Destroy{Target: domain.FieldIdentity(final, ref)})
	}

	for _, state := range src.Workflow.States {
		to, ok := m.TargetStateFor(state)
		if ok {
			if to == state {
				continue
			}
			if next, chained := m.TargetStateFor(to); chained && next != to && src.Workflow.HasState(to) {
				errs = append(errs, fmt.Errorf("%w: state %q moves to %q, which itself moves to %q",
					domain.ErrConflictingAction, state, to, next))
				continue
			}
			actions = append(actions, domain.ModifyState{Type: final, From: state, To: to})
			continue
		}
		if tgt.Workflow.HasState(state) {
			continue
		}
		if c.opts.DestroyUnmappedStates {
			actions = append(actions, domain.Destroy{Target: domain.StateIdentity(final, state)})
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return actions, nil
}

func (c *EntityComparer) retire(src *domain.EntityType, m *domain.EntityMap) ([]domain.Action, []error) {
	if len(m.Fields) > 0 || len(m.States) > 0 || len(m.Copies) > 0 {
		return nil, []error{fmt.Errorf("%w: %q is retired but its mapping still declares field, state or copy rules",
			domain.ErrConflictingAction, src.Name)}
	}
	return []domain.Action{
		domain.NewExportAll(src.Name),
		domain.Destroy{Target: domain.TypeIdentity(src.Name)},
	}, nil
}

func checkFieldMaps(src, tgt *domain.EntityType, m *domain.EntityMap) []error {
	var errs []error
	sources := make(map[string]bool, len(m.Fields))
	targets := make(map[string]string, len(m.Fields))
	for _, fm := range m.Fields {
		if !src.HasField(fm.Source) {
			errs = append(errs, fmt.Errorf("%w: field %q not in source type %q",
				domain.ErrUnresolvedMappingReference, fm.Source, src.Name))
		}
		if !tgt.HasField(fm.Target) {
			errs = append(errs, fmt.Errorf("%w: field %q not in target type %q",
				domain.ErrUnresolvedMappingReference, fm.Target, tgt.Name))
		}
		if sources[fm.Source] {
			errs = append(errs, fmt.Errorf("%w: field %q mapped more than once",
				domain.ErrAmbiguousCorrespondence, fm.Source))
		}
		sources[fm.Source] = true
		if prev, dup := targets[fm.Target]; dup {
			errs = append(errs, fmt.Errorf("%w: fields %q and %q both map to %q",
				domain.ErrAmbiguousCorrespondence, prev, fm.Source, fm.Target))
			continue
		}
		targets[fm.Target] = fm.Source
	}
	return errs
}

func checkStateMaps(src, tgt *domain.EntityType, m *domain.EntityMap) []error {
	var errs []error
	sources := make(map[string]bool, len(m.States))
	targets := make(map[string]string, len(m.States))
	for _, sm := range m.States {
		if !src.Workflow.HasState(sm.Source) {
			errs = append(errs, fmt.Errorf("%w: state %q not in source type %q",
				domain.ErrUnresolvedMappingReference, sm.Source, src.Name))
		}
		if !tgt.Workflow.HasState(sm.Target) {
			errs = append(errs, fmt.Errorf("%w: state %q not in target type %q",
				domain.ErrUnresolvedMappingReference, sm.Target, tgt.Name))
		}
		if sources[sm.Source] {
			errs = append(errs, fmt.Errorf("%w: state %q mapped more than once",
				domain.ErrAmbiguousCorrespondence, sm.Source))
		}
		sources[sm.Source] = true
		if prev, dup := targets[sm.Target]; dup {
			errs = append(errs, fmt.Errorf("%w: states %q and %q both map to %q",
				domain.ErrAmbiguousCorrespondence, prev, sm.Source, sm.Target))
			continue
		}
		targets[sm.Target] = sm.Source
	}
	return errs
}

// checkCopyRules reports copy rules that would overwrite a value another
// rule also writes, or that name a field which receives renamed data.
// Rules that do not resolve are reported by the caller.
func checkCopyRules(src, tgt *domain.EntityType, m *domain.EntityMap) []error {
	var errs []error
	renamedInto := make(map[string]string, len(m.Fields))
	for _, fm := range m.Fields {
		if fm.Source != fm.Target {
			renamedInto[fm.Target] = fm.Source
		}
	}
	writers := make(map[string]string, len(m.Copies))
	for _, rule := range m.Copies {
		if from, ok := renamedInto[rule.To]; ok && !src.HasField(rule.To) {
			errs = append(errs, fmt.Errorf("%w: copy into %q would overwrite the data of %q renamed onto it",
				domain.ErrConflictingAction, rule.To, from))
			continue
		}
		_, to, err := resolveCopy(src, tgt, m, rule)
		if err != nil {
			continue
		}
		if prev, dup := writers[to]; dup {
			errs = append(errs, fmt.Errorf("%w: copies from %q and %q both write %q",
				domain.ErrAmbiguousCorrespondence, prev, rule.From, to))
			continue
		}
		writers[to] = rule.From
	}
	return errs
}

// resolveCopy returns the identifiers a copy rule reads and writes once
// every rename of the entity has been applied.
func resolveCopy(src, tgt *domain.EntityType, m *domain.EntityMap, rule domain.CopyRule) (string, string, error) {
	if !src.HasField(rule.From) {
		return "", "", fmt.Errorf("%w: copy source %q not in source type %q",
			domain.ErrUnresolvedMappingReference, rule.From, src.Name)
	}
	from := rule.From
	if renamed, ok := m.TargetFieldFor(rule.From); ok {
		from = renamed
	}

	to := rule.To
	switch {
	case tgt.HasField(rule.To):
	case src.HasField(rule.To):
		renamed, ok := m.TargetFieldFor(rule.To)
		if !ok {
			return "", "", fmt.Errorf("%w: copy target %q is destroyed in %q",
				domain.ErrConflictingAction, rule.To, tgt.Name)
		}
		to = renamed
	default:
		return "", "", fmt.Errorf("%w: copy target %q not in target type %q",
			domain.ErrUnresolvedMappingReference, rule.To, tgt.Name)
	}
	return from, to, nil
}
