package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/witmorph/internal/config"
	"github.com/aretw0/witmorph/pkg/adapters/memory"
	"github.com/aretw0/witmorph/pkg/adapters/sqlstore"
	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/ports"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "..", "pkg", "adapters", "file", "testdata", name))
	require.NoError(t, err)
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlanCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	planPath := filepath.Join(dir, "plan.json")

	out, err := execute(t, "plan", fixture(t, "scrum2.yaml"), fixture(t, "agile6.yaml"), fixture(t, "scrum2-agile6.yaml"),
		"--format", "json", "-o", planPath)
	require.NoError(t, err)

	var printed domain.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.NotEmpty(t, printed.Steps)

	written, err := readPlan(planPath)
	require.NoError(t, err)
	assert.Equal(t, printed.ID, written.ID)
	assert.Equal(t, printed.Steps, written.Steps)
}

func TestPlanCommand_UnknownFormat(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "plan", fixture(t, "scrum2.yaml"), fixture(t, "agile6.yaml"), fixture(t, "scrum2-agile6.yaml"),
		"--format", "yaml", "-o", "")
	assert.ErrorContains(t, err, "unknown format")
}

func TestApplyCommand_SQLite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	planPath := filepath.Join(dir, "plan.json")
	seedPath := filepath.Join(dir, "seed.yaml")
	dbPath := filepath.Join(dir, "records.db")

	_, err := execute(t, "plan", fixture(t, "scrum2.yaml"), fixture(t, "agile6.yaml"), fixture(t, "scrum2-agile6.yaml"),
		"--format", "text", "-o", planPath)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(seedPath, []byte(`
- type: Product Backlog Item
  state: Done
  fields:
    System.Title: Login page
    Microsoft.VSTS.Scheduling.Effort: 5
- type: Impediment
  state: Open
  fields:
    System.Title: Build server down
`), 0644))

	args := []string{"apply", planPath,
		"--seed", seedPath,
		"--store-driver", "sqlite",
		"--store-dsn", dbPath,
		"--archive-path", filepath.Join(dir, "exports"),
		"--progress-path", filepath.Join(dir, "progress"),
	}
	out, err := execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "applied")

	store, err := sqlstore.Open(context.Background(), sqlstore.SQLite, dbPath)
	require.NoError(t, err)
	defer store.Close()

	stories, err := store.Query(context.Background(), ports.RecordQuery{Type: "User Story"})
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "Resolved", stories[0].State)
	assert.EqualValues(t, 5, stories[0].Fields["Microsoft.VSTS.Scheduling.StoryPoints"])
	assert.NotContains(t, stories[0].Fields, "Microsoft.VSTS.Scheduling.Effort")

	impediments, err := store.Query(context.Background(), ports.RecordQuery{Type: "Impediment"})
	require.NoError(t, err)
	assert.Empty(t, impediments)

	exports, err := filepath.Glob(filepath.Join(dir, "exports", "*", "*.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, exports, "retired and destroyed data is archived first")
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", fixture(t, "scrum2.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	out, err = execute(t, "validate", fixture(t, "scrum2.yaml"), fixture(t, "agile6.yaml"), fixture(t, "scrum2-agile6.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Mapping")

	_, err = execute(t, "validate", fixture(t, "scrum2.yaml"), fixture(t, "agile6.yaml"))
	assert.Error(t, err)
}

func TestGraphCommand(t *testing.T) {
	out, err := execute(t, "graph", fixture(t, "agile6.yaml"), "--entity", "Bug")
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "%% Bug")

	_, err = execute(t, "graph", fixture(t, "agile6.yaml"), "--entity", "Nope")
	assert.Error(t, err)
}

func TestResources_Drivers(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		Store:    config.StoreConfig{Driver: "memory"},
		Archive:  config.ArchiveConfig{Driver: "xlsx", Path: filepath.Join(dir, "exports")},
		Progress: config.ProgressConfig{Driver: "memory"},
	}
	res := newResources(cfg)
	defer res.Close()

	store, err := res.Store(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, store)

	archive, err := res.Archive(context.Background())
	require.NoError(t, err)
	loc, err := archive.Write(context.Background(), "p/001-Bug", domain.ExportBatch{Type: "Bug"})
	require.NoError(t, err)
	assert.FileExists(t, loc)

	_, err = res.Progress()
	require.NoError(t, err)
	assert.IsType(t, &memory.Locker{}, res.Locker(), "redis locking is opt-in")

	res.cfg.Store.Driver = "oracle"
	_, err = res.Store(context.Background())
	assert.Error(t, err)
}

func TestResources_SealedArchive(t *testing.T) {
	cfg := config.Config{Archive: config.ArchiveConfig{
		Driver:        "file",
		Path:          t.TempDir(),
		EncryptionKey: base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32)),
		MaskFields:    []string{"Title"},
	}}
	archive, err := newResources(cfg).Archive(context.Background())
	require.NoError(t, err)

	batch := domain.ExportBatch{Type: "Bug", Records: []domain.Record{
		{ID: 1, Type: "Bug", Fields: map[string]any{"System.Title": "secret", "Effort": "3"}},
	}}
	loc, err := archive.Write(context.Background(), "p/001-Bug", batch)
	require.NoError(t, err)

	raw, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Effort", "records are sealed on disk")

	got, err := archive.(ports.ArchiveReader).Read(context.Background(), "p/001-Bug")
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "***", got.Records[0].Fields["System.Title"])
	assert.Equal(t, "3", got.Records[0].Fields["Effort"])
}
