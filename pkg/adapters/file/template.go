package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/witmorph/pkg/domain"
	"gopkg.in/yaml.v3"
)

// TemplateLoader reads a process template snapshot from a YAML or JSON file.
type TemplateLoader struct {
	Path string
}

// NewTemplateLoader creates a loader for the given file.
func NewTemplateLoader(path string) *TemplateLoader {
	return &TemplateLoader{Path: path}
}

// Load implements ports.TemplateLoader.
func (l *TemplateLoader) Load(ctx context.Context) (*domain.ProcessTemplate, error) {
	var tmpl domain.ProcessTemplate
	if err := decodeFile(l.Path, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	if tmpl.Name == "" {
		tmpl.Name = strings.TrimSuffix(filepath.Base(l.Path), filepath.Ext(l.Path))
	}
	return &tmpl, nil
}

// MappingSource reads a mapping from a YAML or JSON file.
type MappingSource struct {
	Path string
}

// NewMappingSource creates a mapping source for the given file.
func NewMappingSource(path string) *MappingSource {
	return &MappingSource{Path: path}
}

// Mapping implements ports.MappingSource.
func (m *MappingSource) Mapping(ctx context.Context) (*domain.Mapping, error) {
	var mapping domain.Mapping
	if err := decodeFile(m.Path, &mapping); err != nil {
		return nil, fmt.Errorf("failed to load mapping: %w", err)
	}
	return &mapping, nil
}

// Decode parses YAML or JSON data into out, picking the format from ext.
func Decode(data []byte, ext string, out any) error {
	if strings.ToLower(ext) == ".json" {
		return json.Unmarshal(data, out)
	}
	// Default to YAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := Decode(data, filepath.Ext(path), out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
