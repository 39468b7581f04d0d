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

// Archive implements ports.Archive by writing one JSON document per export.
type Archive struct {
	BasePath string
}

// NewArchive creates an archive rooted at basePath.
// If basePath is empty, it defaults to ".witmorph/exports".
func NewArchive(basePath string) *Archive {
	if basePath == "" {
		basePath = filepath.Join(".witmorph", "exports")
	}
	return &Archive{BasePath: basePath}
}

// Write stores the batch at <base>/<key>.json. An existing export is kept.
func (a *Archive) Write(ctx context.Context, key string, batch domain.ExportBatch) (string, error) {
	dest, err := a.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrArchiveEntryExists, dest)
	}
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}
	if err := writeAtomic(dest, data); err != nil {
		return "", err
	}
	return dest, nil
}

// Read implements ports.ArchiveReader.
func (a *Archive) Read(ctx context.Context, key string) (domain.ExportBatch, error) {
	var batch domain.ExportBatch
	src, err := a.path(key)
	if err != nil {
		return batch, err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return batch, domain.ErrArchiveEntryNotFound
		}
		return batch, fmt.Errorf("failed to read export: %w", err)
	}
	if err := json.Unmarshal(data, &batch); err != nil {
		return batch, fmt.Errorf("failed to unmarshal export: %w", err)
	}
	return batch, nil
}

func (a *Archive) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return filepath.Join(a.BasePath, clean+".json"), nil
}
