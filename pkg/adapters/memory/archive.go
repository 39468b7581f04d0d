package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/witmorph/pkg/domain"
)

// Archive implements ports.Archive and ports.ArchiveReader in memory.
type Archive struct {
	entries map[string]domain.ExportBatch
	mu      sync.RWMutex
}

// NewArchive creates an empty in-memory archive.
func NewArchive() *Archive {
	return &Archive{entries: make(map[string]domain.ExportBatch)}
}

// Write stores the batch under key unless key is already taken.
func (a *Archive) Write(ctx context.Context, key string, batch domain.ExportBatch) (string, error) {
	recs := make([]domain.Record, len(batch.Records))
	for i, r := range batch.Records {
		recs[i] = r.Clone()
	}
	batch.Records = recs

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.entries[key]; ok {
		return "", fmt.Errorf("%w: %s", domain.ErrArchiveEntryExists, key)
	}
	a.entries[key] = batch
	return "memory://" + key, nil
}

// Read returns the batch stored under key.
func (a *Archive) Read(ctx context.Context, key string) (domain.ExportBatch, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	b, ok := a.entries[key]
	if !ok {
		return domain.ExportBatch{}, domain.ErrArchiveEntryNotFound
	}
	return b, nil
}

// Keys returns the stored keys in lexical order.
func (a *Archive) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	keys := make([]string, 0, len(a.entries))
	for k := range a.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
