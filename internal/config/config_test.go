package config_test

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/witmorph/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load(config.New(""))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "file", cfg.Archive.Driver)
	assert.Equal(t, ".witmorph/exports", cfg.Archive.Path)
	assert.Equal(t, "file", cfg.Progress.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "witmorph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
store:
  driver: sqlite
  dsn: records.db
archive:
  driver: s3
  s3:
    bucket: exports
    path_style: true
planner:
  parallel: true
  workers: 4
`), 0o644))
	t.Setenv("WITMORPH_STORE_DSN", "override.db")
	t.Setenv("WITMORPH_REDIS_DB", "3")

	cfg, err := config.Load(config.New(path))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "override.db", cfg.Store.DSN, "environment wins over the file")
	assert.Equal(t, "exports", cfg.Archive.S3.Bucket)
	assert.True(t, cfg.Archive.S3.PathStyle)
	assert.Equal(t, "us-east-1", cfg.Archive.S3.Region)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.Planner.Parallel)
	assert.Equal(t, 4, cfg.Planner.Workers)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WITMORPH_STORE_DRIVER", "mysql")
	t.Setenv("WITMORPH_ARCHIVE_DRIVER", "s3")

	_, err := config.Load(config.New(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store.driver "mysql"`)
	assert.Contains(t, err.Error(), "archive.s3.bucket")
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "witmorph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unclosed"), 0o644))

	_, err := config.Load(config.New(path))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestArchiveConfig_Keys(t *testing.T) {
	key := bytes.Repeat([]byte{1}, 32)
	old := bytes.Repeat([]byte{2}, 32)

	active, fallback, err := config.ArchiveConfig{}.Keys()
	require.NoError(t, err)
	assert.Nil(t, active, "encryption is off by default")
	assert.Nil(t, fallback)

	active, fallback, err = config.ArchiveConfig{
		EncryptionKey: base64.StdEncoding.EncodeToString(key),
		FallbackKeys:  []string{base64.StdEncoding.EncodeToString(old)},
	}.Keys()
	require.NoError(t, err)
	assert.Equal(t, key, active)
	assert.Equal(t, [][]byte{old}, fallback)

	_, _, err = config.ArchiveConfig{EncryptionKey: base64.StdEncoding.EncodeToString([]byte("short"))}.Keys()
	assert.ErrorContains(t, err, "32 bytes")

	_, _, err = config.ArchiveConfig{EncryptionKey: "not base64!"}.Keys()
	assert.ErrorContains(t, err, "base64")
}

func TestLoad_ArchiveMiddlewares(t *testing.T) {
	path := filepath.Join(t.TempDir(), "witmorph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
archive:
  mask_fields: ["(?i)email", "SSN$"]
  encryption_key: short
`), 0o644))

	_, err := config.Load(config.New(path))
	assert.ErrorContains(t, err, "archive.encryption_key")

	require.NoError(t, os.WriteFile(path, []byte(`
archive:
  mask_fields: ["(?i)email", "SSN$"]
`), 0o644))
	cfg, err := config.Load(config.New(path))
	require.NoError(t, err)
	assert.Equal(t, []string{"(?i)email", "SSN$"}, cfg.Archive.MaskFields)
}
