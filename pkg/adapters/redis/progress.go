package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/witmorph/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "witmorph:progress:"

// ProgressStore implements ports.ProgressStore using Redis.
// Checkpoints are JSON values indexed by a sorted set scored on expiry.
type ProgressStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*ProgressStore)

// WithTTL sets the expiration for checkpoints.
func WithTTL(ttl time.Duration) Option {
	return func(s *ProgressStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for checkpoints.
func WithPrefix(prefix string) Option {
	return func(s *ProgressStore) {
		s.prefix = prefix
	}
}

// New creates a new Redis progress store with options.
func New(address, password string, db int, opts ...Option) *ProgressStore {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a new Redis progress store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *ProgressStore {
	store := &ProgressStore{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *ProgressStore) key(planID string) string {
	return s.prefix + planID
}

func (s *ProgressStore) indexKey() string {
	return s.prefix + "index"
}

// Save persists the checkpoint to Redis.
func (s *ProgressStore) Save(ctx context.Context, planID string, p *domain.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	// Score = Now + TTL, or far future when checkpoints never expire.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(planID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: planID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the checkpoint from Redis.
func (s *ProgressStore) Load(ctx context.Context, planID string) (*domain.Progress, error) {
	val, err := s.client.Get(ctx, s.key(planID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var p domain.Progress
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

// Delete removes the checkpoint.
func (s *ProgressStore) Delete(ctx context.Context, planID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(planID))
	pipe.ZRem(ctx, s.indexKey(), planID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns plan IDs with a live checkpoint, pruning expired index entries first.
func (s *ProgressStore) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired checkpoints: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *ProgressStore) Close() error {
	return s.client.Close()
}
