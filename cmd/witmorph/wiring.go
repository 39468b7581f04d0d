package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/witmorph/internal/config"
	"github.com/aretw0/witmorph/pkg/adapters/file"
	"github.com/aretw0/witmorph/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/witmorph/pkg/adapters/redis"
	s3Adapter "github.com/aretw0/witmorph/pkg/adapters/s3"
	"github.com/aretw0/witmorph/pkg/adapters/sqlstore"
	"github.com/aretw0/witmorph/pkg/adapters/xlsx"
	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/persistence/middleware"
	"github.com/aretw0/witmorph/pkg/ports"
)

const redisPrefix = "witmorph:"

// resources builds adapters from config and closes them in reverse order.
type resources struct {
	cfg     config.Config
	redis   *backend.Client
	closers []func() error
}

func newResources(cfg config.Config) *resources {
	return &resources{cfg: cfg}
}

func (r *resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

func (r *resources) redisClient() *backend.Client {
	if r.redis == nil {
		r.redis = backend.NewClient(&backend.Options{
			Addr:     r.cfg.Redis.Addr,
			Password: r.cfg.Redis.Password,
			DB:       r.cfg.Redis.DB,
		})
		r.closers = append(r.closers, r.redis.Close)
	}
	return r.redis
}

func (r *resources) Store(ctx context.Context) (ports.RecordStore, error) {
	if r.cfg.Store.Driver == "memory" {
		return memory.NewStore(), nil
	}
	d, ok := sqlstore.ParseDialect(r.cfg.Store.Driver)
	if !ok {
		return nil, fmt.Errorf("unknown store driver %q", r.cfg.Store.Driver)
	}
	store, err := sqlstore.Open(ctx, d, r.cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, store.Close)
	return store, nil
}

// Archive opens the configured archive behind the masking and
// encryption middlewares, when enabled.
func (r *resources) Archive(ctx context.Context) (ports.Archive, error) {
	a := r.cfg.Archive
	var archive ports.Archive
	switch a.Driver {
	case "file":
		archive = file.NewArchive(a.Path)
	case "xlsx":
		archive = xlsx.NewArchive(a.Path)
	case "s3":
		s3Archive, err := s3Adapter.New(ctx, s3Adapter.Config{
			Bucket:    a.S3.Bucket,
			Region:    a.S3.Region,
			Endpoint:  a.S3.Endpoint,
			Prefix:    a.S3.Prefix,
			PathStyle: a.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		archive = s3Archive
	default:
		return nil, fmt.Errorf("unknown archive driver %q", a.Driver)
	}

	var mws []middleware.Middleware
	if len(a.MaskFields) > 0 {
		mask, err := middleware.NewPIIMiddleware(a.MaskFields)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mask)
	}
	active, fallback, err := a.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, seal)
	}
	return middleware.Chain(archive, mws...), nil
}

func (r *resources) Progress() (ports.ProgressStore, error) {
	switch r.cfg.Progress.Driver {
	case "memory":
		return memory.NewProgressStore(), nil
	case "file":
		return file.NewProgressStore(r.cfg.Progress.Path), nil
	case "redis":
		return redisAdapter.NewFromClient(r.redisClient(), redisAdapter.WithPrefix(redisPrefix+"progress:")), nil
	default:
		return nil, fmt.Errorf("unknown progress driver %q", r.cfg.Progress.Driver)
	}
}

// Locker guards applies across processes when redis.lock is enabled and
// within this process otherwise.
func (r *resources) Locker() ports.DistributedLocker {
	if !r.cfg.Redis.Lock {
		return memory.NewLocker()
	}
	return redisAdapter.NewLocker(r.redisClient(), redisPrefix)
}

// seedRecords inserts the records listed in a YAML or JSON file.
func seedRecords(ctx context.Context, store ports.RecordStore, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var recs []domain.Record
	if err := file.Decode(data, filepath.Ext(path), &recs); err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	for i, rec := range recs {
		if rec.Type == "" {
			return i, fmt.Errorf("record %d has no type", i)
		}
		if _, err := store.Insert(ctx, rec); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}
