package tests

import (
	"context"
	"testing"

	"github.com/aretw0/witmorph/pkg/ports"
)

// TemplateLoaderContractTest is a reusable test suite that verifies if an adapter
// complies with ports.TemplateLoader. want lists the entity types and the field
// references each must expose, in declaration order.
func TemplateLoaderContractTest(t *testing.T, loader ports.TemplateLoader, want map[string][]string) {
	t.Helper()
	ctx := context.Background()

	tmpl, err := loader.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error loading template: %v", err)
	}
	if tmpl == nil {
		t.Fatal("loader returned a nil template")
	}

	t.Run("Entities", func(t *testing.T) {
		if len(tmpl.Entities) != len(want) {
			t.Errorf("expected %d entity types, got %d (%v)", len(want), len(tmpl.Entities), tmpl.EntityNames())
		}
		for name := range want {
			if _, ok := tmpl.Entity(name); !ok {
				t.Errorf("expected entity type %q to be loaded", name)
			}
		}
	})

	t.Run("Fields", func(t *testing.T) {
		for name, refs := range want {
			et, ok := tmpl.Entity(name)
			if !ok {
				continue
			}
			got := et.FieldRefs()
			if len(got) != len(refs) {
				t.Errorf("%s: expected fields %v, got %v", name, refs, got)
				continue
			}
			for i := range refs {
				if got[i] != refs[i] {
					t.Errorf("%s: field %d mismatch. got %q, want %q", name, i, got[i], refs[i])
				}
			}
		}
	})

	t.Run("Read Only", func(t *testing.T) {
		again, err := loader.Load(ctx)
		if err != nil {
			t.Fatalf("second load failed: %v", err)
		}
		if len(again.Entities) != len(tmpl.Entities) {
			t.Fatalf("second load returned %d entity types, want %d", len(again.Entities), len(tmpl.Entities))
		}
		for i, e := range again.Entities {
			if e.Name != tmpl.Entities[i].Name {
				t.Errorf("entity %d changed between loads: %q vs %q", i, e.Name, tmpl.Entities[i].Name)
			}
		}
	})
}
