package runtime

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/ports"
)

// ExportKey is the archive key of the ExportData step at index i.
func ExportKey(planID string, i int, typeName string) string {
	return fmt.Sprintf("%s/%03d-%s", planID, i, typeName)
}

func (e *Executor) apply(ctx context.Context, planID string, i int, step domain.Action) (StepResult, error) {
	res := StepResult{Index: i, Action: step}
	var err error

	switch a := step.(type) {
	case domain.Rename:
		switch a.Target.Kind {
		case domain.IdentityType:
			res.Affected, err = e.store.RenameType(ctx, a.Target.Type, a.NewName)
		case domain.IdentityField:
			res.Affected, err = e.store.RenameField(ctx, a.Target.Type, a.Target.Name, a.NewName)
		case domain.IdentityState:
			res.Affected, err = e.store.RewriteState(ctx, a.Target.Type, a.Target.Name, a.NewName)
		default:
			err = fmt.Errorf("unknown identity kind %q", a.Target.Kind)
		}

	case domain.ExportData:
		res.Affected, res.Location, err = e.export(ctx, planID, i, a)

	case domain.CopyData:
		res.Affected, err = e.copyField(ctx, a)

	case domain.ModifyState:
		res.Affected, err = e.store.RewriteState(ctx, a.Type, a.From, a.To)

	case domain.Destroy:
		switch a.Target.Kind {
		case domain.IdentityType:
			res.Affected, err = e.store.DestroyType(ctx, a.Target.Type)
		case domain.IdentityField:
			res.Affected, err = e.store.DestroyField(ctx, a.Target.Type, a.Target.Name)
		case domain.IdentityState:
			// Records leave the retired state; the target workflow assigns a new one.
			res.Affected, err = e.store.RewriteState(ctx, a.Target.Type, a.Target.Name, "")
		default:
			err = fmt.Errorf("unknown identity kind %q", a.Target.Kind)
		}

	default:
		err = fmt.Errorf("unsupported action %T", step)
	}
	return res, err
}

func (e *Executor) export(ctx context.Context, planID string, i int, a domain.ExportData) (int, string, error) {
	if e.archive == nil {
		return 0, "", fmt.Errorf("no archive configured for export of %q", a.Type)
	}
	q := ports.RecordQuery{Type: a.Type}
	if !a.AllFields {
		q.Fields = a.Fields
	}
	recs, err := e.store.Query(ctx, q)
	if err != nil {
		return 0, "", fmt.Errorf("failed to query %q: %w", a.Type, err)
	}
	key := ExportKey(planID, i, a.Type)
	loc, err := e.archive.Write(ctx, key, domain.ExportBatch{
		PlanID:     planID,
		Step:       i,
		Type:       a.Type,
		Fields:     a.Fields,
		AllFields:  a.AllFields,
		ExportedAt: time.Now().UTC(),
		Records:    recs,
	})
	if errors.Is(err, domain.ErrArchiveEntryExists) {
		// An earlier run exported this step; its batch is the one to keep.
		e.logger.Info("export already archived", "plan_id", planID, "step", i, "key", key)
		return 0, key, nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to archive %q: %w", a.Type, err)
	}
	return len(recs), loc, nil
}

// copyField writes To = From on each record that holds From, skipping
// records that already agree.
func (e *Executor) copyField(ctx context.Context, a domain.CopyData) (int, error) {
	recs, err := e.store.Query(ctx, ports.RecordQuery{Type: a.Type, Fields: []string{a.From, a.To}})
	if err != nil {
		return 0, fmt.Errorf("failed to query %q: %w", a.Type, err)
	}
	n := 0
	for _, r := range recs {
		v, ok := r.Fields[a.From]
		if !ok {
			continue
		}
		if cur, has := r.Fields[a.To]; has && reflect.DeepEqual(cur, v) {
			continue
		}
		if err := e.store.SetField(ctx, a.Type, r.ID, a.To, v); err != nil {
			return n, fmt.Errorf("failed to copy %q to %q on record %d: %w", a.From, a.To, r.ID, err)
		}
		n++
	}
	return n, nil
}
