package planner

import (
	"context"
	"fmt"
	"runtime"

	"github.com/aretw0/witmorph/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// CollectionComparer walks every entity pair of a mapping in declaration
// order and feeds the resulting actions into a shared ActionSet.
type CollectionComparer struct {
	mapping *domain.Mapping
	set     *ActionSet
	entity  *EntityComparer
	opts    Options
}

// NewCollectionComparer binds a comparer to the mapping and the action set
// of one planning run.
func NewCollectionComparer(m *domain.Mapping, set *ActionSet, opts Options) *CollectionComparer {
	return &CollectionComparer{
		mapping: m,
		set:     set,
		entity:  NewEntityComparer(opts),
		opts:    opts,
	}
}

type pairResult struct {
	em      *domain.EntityMap
	src     *domain.EntityType
	tgt     *domain.EntityType
	actions []domain.Action
	errs    []error
}

// Compare compares source against target under the mapping.
// Errors are collected per entity pair and never stop sibling pairs; the
// action set holds the actions of every pair that compared cleanly.
func (c *CollectionComparer) Compare(ctx context.Context, source, target *domain.ProcessTemplate) (domain.PlanErrors, error) {
	log := c.opts.logger()
	results := c.resolve(source, target)

	var pending []int
	for i, r := range results {
		if len(r.errs) == 0 {
			pending = append(pending, i)
		}
	}

	if c.opts.Parallel && len(pending) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		workers := c.opts.Workers
		if workers <= 0 {
			workers = runtime.GOMAXPROCS(0)
		}
		g.SetLimit(workers)
		for _, i := range pending {
			r := &results[i]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				r.actions, r.errs = c.entity.Compare(r.src, r.tgt, r.em)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for _, i := range pending {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r := &results[i]
			r.actions, r.errs = c.entity.Compare(r.src, r.tgt, r.em)
		}
	}

	var errs domain.PlanErrors
	for _, r := range results {
		if len(r.errs) > 0 {
			for _, err := range r.errs {
				errs = append(errs, &domain.EntityError{Source: r.em.Source, Target: r.em.Target, Err: err})
			}
			log.Warn("entity comparison failed", "source", r.em.Source, "target", r.em.Target, "errors", len(r.errs))
			continue
		}
		c.set.Add(r.actions...)
		log.Debug("entity compared", "source", r.em.Source, "target", r.em.Target, "actions", len(r.actions))
	}

	for _, name := range source.EntityNames() {
		if _, ok := c.mapping.Entity(name); !ok {
			log.Info("source type not in mapping, left untouched", "type", name)
		}
	}
	return errs, nil
}

// resolve pairs each mapping entry with its snapshots and records the
// errors that span more than one entity pair.
func (c *CollectionComparer) resolve(source, target *domain.ProcessTemplate) []pairResult {
	results := make([]pairResult, len(c.mapping.Entities))
	seenSources := make(map[string]bool, len(results))
	seenTargets := make(map[string]string, len(results))

	for i := range c.mapping.Entities {
		em := &c.mapping.Entities[i]
		r := &results[i]
		r.em = em

		src, ok := source.Entity(em.Source)
		if !ok {
			r.errs = append(r.errs, fmt.Errorf("%w: type %q not in source template",
				domain.ErrUnresolvedMappingReference, em.Source))
		}
		r.src = src

		if seenSources[em.Source] {
			r.errs = append(r.errs, fmt.Errorf("%w: type %q mapped more than once",
				domain.ErrAmbiguousCorrespondence, em.Source))
		}
		seenSources[em.Source] = true

		if em.Retired() {
			continue
		}

		tgt, ok := target.Entity(em.Target)
		if !ok {
			r.errs = append(r.errs, fmt.Errorf("%w: type %q not in target template",
				domain.ErrUnresolvedMappingReference, em.Target))
		}
		r.tgt = tgt

		if prev, dup := seenTargets[em.Target]; dup {
			r.errs = append(r.errs, fmt.Errorf("%w: types %q and %q both map to %q",
				domain.ErrAmbiguousCorrespondence, prev, em.Source, em.Target))
		} else {
			seenTargets[em.Target] = em.Source
		}

		if em.Target != em.Source {
			if _, taken := source.Entity(em.Target); taken {
				r.errs = append(r.errs, fmt.Errorf("%w: type %q renamed to %q, which the source template still holds",
					domain.ErrConflictingAction, em.Source, em.Target))
			}
		}
	}
	return results
}
