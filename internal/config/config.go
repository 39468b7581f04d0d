// Package config loads witmorph settings from an optional witmorph.yaml,
// WITMORPH_* environment variables and bound command-line flags.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix maps log.level to WITMORPH_LOG_LEVEL and so on.
const EnvPrefix = "WITMORPH"

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Progress ProgressConfig `mapstructure:"progress"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Planner  PlannerConfig  `mapstructure:"planner"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StoreConfig selects the record store plans are applied to.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // memory, sqlite or postgres
	DSN    string `mapstructure:"dsn"`
}

// ArchiveConfig selects where exported records are written.
type ArchiveConfig struct {
	Driver string   `mapstructure:"driver"` // file, xlsx or s3
	Path   string   `mapstructure:"path"`
	S3     S3Config `mapstructure:"s3"`

	// EncryptionKey is a base64 AES-256 key; when set exports are sealed.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
	// MaskFields are regular expressions over field reference names.
	MaskFields []string `mapstructure:"mask_fields"`
}

// Keys decodes the encryption keys. It returns a nil active key when
// encryption is off.
func (a ArchiveConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if a.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(a.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("archive.encryption_key: %w", err)
	}
	for i, k := range a.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("archive.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Prefix    string `mapstructure:"prefix"`
	PathStyle bool   `mapstructure:"path_style"`
}

// ProgressConfig selects the checkpoint store.
type ProgressConfig struct {
	Driver string `mapstructure:"driver"` // memory, file or redis
	Path   string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Lock     bool   `mapstructure:"lock"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type PlannerConfig struct {
	DestroyUnmappedStates bool `mapstructure:"destroy_unmapped_states"`
	Parallel              bool `mapstructure:"parallel"`
	Workers               int  `mapstructure:"workers"`
}

// New returns a viper instance with defaults and environment binding.
// configFile may be empty, in which case witmorph.yaml is searched in the
// working directory and $HOME/.witmorph.
func New(configFile string) *viper.Viper {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("witmorph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.witmorph")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees environment values for keys viper already knows.
	v.SetDefault("log.level", "info")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("archive.driver", "file")
	v.SetDefault("archive.path", ".witmorph/exports")
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.region", "us-east-1")
	v.SetDefault("archive.s3.endpoint", "")
	v.SetDefault("archive.s3.prefix", "")
	v.SetDefault("archive.s3.path_style", false)
	v.SetDefault("archive.encryption_key", "")
	v.SetDefault("archive.fallback_keys", []string{})
	v.SetDefault("archive.mask_fields", []string{})
	v.SetDefault("progress.driver", "file")
	v.SetDefault("progress.path", ".witmorph/progress")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock", false)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("planner.destroy_unmapped_states", false)
	v.SetDefault("planner.parallel", false)
	v.SetDefault("planner.workers", 0)
	return v
}

// Load reads the config file, if any, and decodes the merged settings.
// A missing file is not an error; a malformed one is.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks driver names.
func (c Config) Validate() error {
	var errs []error
	if !oneOf(c.Store.Driver, "memory", "sqlite", "postgres") {
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
	}
	if !oneOf(c.Archive.Driver, "file", "xlsx", "s3") {
		errs = append(errs, fmt.Errorf("unknown archive.driver %q", c.Archive.Driver))
	}
	if c.Archive.Driver == "s3" && c.Archive.S3.Bucket == "" {
		errs = append(errs, fmt.Errorf("archive.s3.bucket is required for the s3 archive"))
	}
	if _, _, err := c.Archive.Keys(); err != nil {
		errs = append(errs, err)
	}
	if !oneOf(c.Progress.Driver, "memory", "file", "redis") {
		errs = append(errs, fmt.Errorf("unknown progress.driver %q", c.Progress.Driver))
	}
	if c.Planner.Workers < 0 {
		errs = append(errs, fmt.Errorf("planner.workers cannot be negative"))
	}
	return errors.Join(errs...)
}

func oneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
