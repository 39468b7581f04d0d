package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/ports"
)

// Store implements ports.RecordStore in memory.
// Safe for concurrent use.
type Store struct {
	records map[int64]*domain.Record
	nextID  int64
	mu      sync.RWMutex
}

// NewStore creates a new in-memory record store.
func NewStore() *Store {
	return &Store{
		records: make(map[int64]*domain.Record),
	}
}

// Insert stores a copy of rec under a fresh ID.
func (s *Store) Insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if rec.Type == "" {
		return domain.Record{}, fmt.Errorf("record type cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stored := rec.Clone()
	stored.ID = s.nextID
	if stored.Fields == nil {
		stored.Fields = map[string]any{}
	}
	s.records[stored.ID] = &stored
	return stored.Clone(), nil
}

// Query returns copies of the matching records ordered by ID.
func (s *Store) Query(ctx context.Context, q ports.RecordQuery) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Record
	for _, r := range s.ofType(q.Type) {
		rec := domain.Record{ID: r.ID, Type: r.Type, State: r.State, Fields: map[string]any{}}
		if q.Fields == nil {
			for k, v := range r.Fields {
				rec.Fields[k] = v
			}
		} else {
			for _, f := range q.Fields {
				if v, ok := r.Fields[f]; ok {
					rec.Fields[f] = v
				}
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// SetField writes one field of one record.
func (s *Store) SetField(ctx context.Context, typeName string, id int64, field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok || r.Type != typeName {
		return fmt.Errorf("record %d of type %q not found", id, typeName)
	}
	r.Fields[field] = value
	return nil
}

// RewriteState moves records of a type from one state to another.
func (s *Store) RewriteState(ctx context.Context, typeName, from, to string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.ofType(typeName) {
		if r.State == from && from != to {
			r.State = to
			n++
		}
	}
	return n, nil
}

// RenameType renames every record of a type.
func (s *Store) RenameType(ctx context.Context, from, to string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if from == to {
		return 0, nil
	}
	n := 0
	for _, r := range s.ofType(from) {
		r.Type = to
		n++
	}
	return n, nil
}

// RenameField renames a field on every record of a type.
// The store is left untouched when any record already holds the new name.
func (s *Store) RenameField(ctx context.Context, typeName, from, to string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if from == to {
		return 0, nil
	}
	recs := s.ofType(typeName)
	for _, r := range recs {
		_, hasFrom := r.Fields[from]
		_, hasTo := r.Fields[to]
		if hasFrom && hasTo {
			return 0, fmt.Errorf("%w: record %d holds both %q and %q", domain.ErrFieldConflict, r.ID, from, to)
		}
	}
	n := 0
	for _, r := range recs {
		if v, ok := r.Fields[from]; ok {
			r.Fields[to] = v
			delete(r.Fields, from)
			n++
		}
	}
	return n, nil
}

// DestroyType removes every record of a type.
func (s *Store) DestroyType(ctx context.Context, typeName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.ofType(typeName) {
		delete(s.records, r.ID)
		n++
	}
	return n, nil
}

// DestroyField removes a field from every record of a type.
func (s *Store) DestroyField(ctx context.Context, typeName, field string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.ofType(typeName) {
		if _, ok := r.Fields[field]; ok {
			delete(r.Fields, field)
			n++
		}
	}
	return n, nil
}

// Snapshot returns copies of every record ordered by ID.
func (s *Store) Snapshot() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ofType must be called with the lock held.
func (s *Store) ofType(typeName string) []*domain.Record {
	var out []*domain.Record
	for _, r := range s.records {
		if r.Type == typeName {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
