package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/witmorph/pkg/domain"
)

// ProgressStore implements ports.ProgressStore using the local filesystem.
// It stores one JSON checkpoint per plan in a configured directory.
type ProgressStore struct {
	BasePath string
}

// NewProgressStore creates a ProgressStore with the given base path.
// If basePath is empty, it defaults to ".witmorph/progress".
func NewProgressStore(basePath string) *ProgressStore {
	if basePath == "" {
		basePath = filepath.Join(".witmorph", "progress")
	}
	return &ProgressStore{BasePath: basePath}
}

// Save persists the checkpoint atomically.
func (s *ProgressStore) Save(ctx context.Context, planID string, p *domain.Progress) error {
	if planID == "" {
		return fmt.Errorf("planID cannot be empty")
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	return writeAtomic(filepath.Join(s.BasePath, planID+".json"), data)
}

// Load retrieves the checkpoint of a plan.
func (s *ProgressStore) Load(ctx context.Context, planID string) (*domain.Progress, error) {
	if planID == "" {
		return nil, fmt.Errorf("planID cannot be empty")
	}

	data, err := os.ReadFile(filepath.Join(s.BasePath, planID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}

	var p domain.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

// Delete removes the checkpoint file.
func (s *ProgressStore) Delete(ctx context.Context, planID string) error {
	if planID == "" {
		return fmt.Errorf("planID cannot be empty")
	}
	err := os.Remove(filepath.Join(s.BasePath, planID+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete progress file: %w", err)
	}
	return nil
}

// List returns the plan IDs with a checkpoint.
func (s *ProgressStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
