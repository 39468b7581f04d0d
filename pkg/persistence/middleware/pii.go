package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/ports"
)

// Mask replaces the value of every masked field.
const Mask = "***"

type piiMiddleware struct {
	next     ports.Archive
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks exported values of fields
// whose reference name matches one of the patterns.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.Archive) ports.Archive {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Write(ctx context.Context, key string, batch domain.ExportBatch) (string, error) {
	// Records are copied so the caller's batch is left as it was.
	masked := make([]domain.Record, len(batch.Records))
	for i, r := range batch.Records {
		r.Fields = deepCopyMap(r.Fields)
		maskMap(r.Fields, m.patterns)
		masked[i] = r
	}
	batch.Records = masked
	return m.next.Write(ctx, key, batch)
}

func (m *piiMiddleware) Read(ctx context.Context, key string) (domain.ExportBatch, error) {
	return readFrom(ctx, m.next, key)
}

// Helpers

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		matched := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				matched = true
				break
			}
		}

		if subMap, ok := v.(map[string]any); ok && !matched {
			maskMap(subMap, patterns)
		}
	}
}
