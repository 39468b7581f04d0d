package ports

import (
	"context"

	"github.com/aretw0/witmorph/pkg/domain"
)

// TemplateLoader defines how a schema snapshot is obtained.
// This allows the template source (file, Loam directory, memory) to be decoupled.
type TemplateLoader interface {
	// Load returns the snapshot of one process template version.
	Load(ctx context.Context) (*domain.ProcessTemplate, error)
}

// MappingSource provides a pre-built correspondence between two templates.
type MappingSource interface {
	Mapping(ctx context.Context) (*domain.Mapping, error)
}
