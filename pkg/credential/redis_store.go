package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultRedisKey is where the record lives unless overridden.
const defaultRedisKey = "cookiekeeper:credential"

// RedisStore persists the record as a single JSON value in redis. Useful
// when several consumers (bot workers, dashboards) share one session and the
// refresher runs in a separate process.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisKey overrides the redis key holding the record.
func WithRedisKey(key string) RedisOption {
	if key == "" {
		panic("WithRedisKey: key cannot be empty")
	}
	return func(s *RedisStore) { s.key = key }
}

// WithTTL expires the stored record after d. Zero keeps it forever; the
// refresher rewrites the key on every successful refresh anyway.
func WithTTL(d time.Duration) RedisOption {
	if d < 0 {
		panic("WithTTL: duration must be >= 0")
	}
	return func(s *RedisStore) { s.ttl = d }
}

// NewRedisStore creates a redis-backed store on an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	if client == nil {
		panic("NewRedisStore: nil client")
	}
	s := &RedisStore{client: client, key: defaultRedisKey}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches and decodes the record.
func (s *RedisStore) Load(ctx context.Context) (*Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read credential from redis: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Save stores the record, resetting the TTL if one is configured.
func (s *RedisStore) Save(ctx context.Context, record *Record) error {
	if record == nil || len(record.Entries) == 0 {
		return ErrEmptyRecord
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode credential record: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("write credential to redis: %w", err)
	}
	return nil
}
