package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/witmorph/pkg/domain"
)

// Loader adapts a Loam repository to the TemplateLoader interface.
// Each document of the repository describes one entity type.
type Loader struct {
	Repo    *loam.TypedRepository[EntityMetadata]
	Name    string
	Version string
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[EntityMetadata], name, version string) *Loader {
	return &Loader{
		Repo:    repo,
		Name:    name,
		Version: version,
	}
}

// Open initializes a read-only Loam repository at dir and wraps it.
// The template is named after the directory.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template directory: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[EntityMetadata](repo), filepath.Base(absPath), ""), nil
}

// Load implements ports.TemplateLoader.
// Entity types are ordered by their "order" key, then by document ID.
func (l *Loader) Load(ctx context.Context) (*domain.ProcessTemplate, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Data.Order != docs[j].Data.Order {
			return docs[i].Data.Order < docs[j].Data.Order
		}
		return docs[i].ID < docs[j].ID
	})

	tmpl := &domain.ProcessTemplate{Name: l.Name, Version: l.Version}
	seen := make(map[string]string, len(docs))
	for _, doc := range docs {
		et := doc.Data.toDomain(trimExtension(doc.ID))

		if existing, ok := seen[et.Name]; ok {
			return nil, fmt.Errorf("collision detected: entity type '%s' is defined in both '%s' and '%s'", et.Name, existing, doc.ID)
		}
		seen[et.Name] = doc.ID
		tmpl.Entities = append(tmpl.Entities, et)
	}
	return tmpl, nil
}

func trimExtension(id string) string {
	base := filepath.Base(filepath.FromSlash(id))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
