package ports

import (
	"context"

	"github.com/aretw0/witmorph/pkg/domain"
)

// RecordQuery selects records of one entity type.
// A nil Fields selects every field.
type RecordQuery struct {
	Type   string
	Fields []string
}

// RecordStore is the live store a plan is applied to.
// Every mutating operation is idempotent: applying it to a store that
// already reflects it changes nothing and reports zero affected records.
type RecordStore interface {
	// Insert adds a record and returns it with its assigned ID.
	Insert(ctx context.Context, rec domain.Record) (domain.Record, error)

	// Query returns the records of a type ordered by ID.
	Query(ctx context.Context, q RecordQuery) ([]domain.Record, error)

	// SetField writes one field of one record.
	SetField(ctx context.Context, typeName string, id int64, field string, value any) error

	// RewriteState moves every record of a type in state from to state to.
	RewriteState(ctx context.Context, typeName, from, to string) (int, error)

	// RenameType renames an entity type in place.
	RenameType(ctx context.Context, from, to string) (int, error)

	// RenameField renames a field of an entity type in place.
	// It returns domain.ErrFieldConflict when a record holds both names.
	RenameField(ctx context.Context, typeName, from, to string) (int, error)

	// DestroyType removes every record of a type.
	DestroyType(ctx context.Context, typeName string) (int, error)

	// DestroyField removes a field from every record of a type.
	DestroyField(ctx context.Context, typeName, field string) (int, error)
}

// ProgressStore persists plan run checkpoints so a halted run can resume.
type ProgressStore interface {
	// Save persists the checkpoint for a plan.
	Save(ctx context.Context, planID string, p *domain.Progress) error

	// Load retrieves the checkpoint for a plan.
	// Returns domain.ErrProgressNotFound if none exists.
	Load(ctx context.Context, planID string) (*domain.Progress, error)

	// Delete removes the checkpoint for a plan.
	Delete(ctx context.Context, planID string) error

	// List returns the plan IDs with a checkpoint.
	List(ctx context.Context) ([]string, error)
}

// Archive receives exported records before anything is destroyed.
type Archive interface {
	// Write stores a batch under key and returns a location describing where
	// it landed. Entries are never replaced: writing an existing key returns
	// domain.ErrArchiveEntryExists and leaves the first batch in place.
	Write(ctx context.Context, key string, batch domain.ExportBatch) (string, error)
}

// ArchiveReader is implemented by archives that can return what they stored.
type ArchiveReader interface {
	Read(ctx context.Context, key string) (domain.ExportBatch, error)
}
