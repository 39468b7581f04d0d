package memory

import (
	"context"
	"sync"

	"github.com/aretw0/witmorph/pkg/domain"
)

// ProgressStore implements ports.ProgressStore in memory.
// Safe for concurrent use.
type ProgressStore struct {
	data map[string]domain.Progress
	mu   sync.RWMutex
}

// NewProgressStore creates a new in-memory checkpoint store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		data: make(map[string]domain.Progress),
	}
}

// Save stores a copy of the checkpoint.
func (s *ProgressStore) Save(ctx context.Context, planID string, p *domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[planID] = *p
	return nil
}

// Load returns a copy so callers cannot mutate the stored checkpoint.
func (s *ProgressStore) Load(ctx context.Context, planID string) (*domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[planID]
	if !ok {
		return nil, domain.ErrProgressNotFound
	}
	return &p, nil
}

// Delete removes the checkpoint.
func (s *ProgressStore) Delete(ctx context.Context, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, planID)
	return nil
}

// List returns the plan IDs with a checkpoint.
func (s *ProgressStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
