package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/witmorph/pkg/domain"
)

// Loader implements ports.TemplateLoader over an in-memory snapshot.
// Every Load returns a fresh deep copy, so callers cannot mutate the source.
type Loader struct {
	raw []byte
}

// NewLoader creates a loader from a template value.
func NewLoader(tmpl domain.ProcessTemplate) (*Loader, error) {
	raw, err := json.Marshal(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template %s: %w", tmpl.Name, err)
	}
	return &Loader{raw: raw}, nil
}

// Load implements ports.TemplateLoader.
func (l *Loader) Load(ctx context.Context) (*domain.ProcessTemplate, error) {
	var tmpl domain.ProcessTemplate
	if err := json.Unmarshal(l.raw, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template: %w", err)
	}
	return &tmpl, nil
}

// MappingSource implements ports.MappingSource over a fixed mapping.
type MappingSource struct {
	mapping domain.Mapping
}

// NewMappingSource wraps a mapping value.
func NewMappingSource(m domain.Mapping) *MappingSource {
	return &MappingSource{mapping: m}
}

// Mapping implements ports.MappingSource.
func (s *MappingSource) Mapping(ctx context.Context) (*domain.Mapping, error) {
	m := s.mapping
	return &m, nil
}
