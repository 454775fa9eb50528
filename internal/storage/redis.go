package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisKV persists subsystem state in Redis. Entries have no TTL: pending
// operations and the appointment cache must survive until explicitly
// removed.
type RedisKV struct {
	redis     *redis.Client
	tracer    trace.Tracer
	keyPrefix string
}

// NewRedisKV creates a Redis-backed store. keyPrefix namespaces this
// deployment's keys (e.g. "telemed_sync:").
func NewRedisKV(redisClient *redis.Client, keyPrefix string) *RedisKV {
	if redisClient == nil {
		panic("storage: redis client cannot be nil")
	}
	return &RedisKV{
		redis:     redisClient,
		tracer:    otel.Tracer("telemed.internal.storage.redis"),
		keyPrefix: keyPrefix,
	}
}

func (s *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "storage.get")
	defer span.End()

	data, err := s.redis.Get(ctx, s.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	ctx, span := s.tracer.Start(ctx, "storage.set")
	defer span.End()

	if err := s.redis.Set(ctx, s.keyPrefix+key, value, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

func (s *RedisKV) Delete(ctx context.Context, key string) error {
	ctx, span := s.tracer.Start(ctx, "storage.delete")
	defer span.End()

	if err := s.redis.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}
