package history

import (
	"context"
	"errors"
	"fmt"

	redisP "coderoom/internal/providers/redis"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps the whole history document under a single key.
type RedisRepository struct {
	redisP *redisP.RedisProvider
	key    string
}

func NewRedisRepository(provider *redisP.RedisProvider, key string) *RedisRepository {
	return &RedisRepository{redisP: provider, key: key}
}

func (r *RedisRepository) Name() string {
	return "redis:" + r.key
}

func (r *RedisRepository) Load(ctx context.Context) ([]Message, error) {
	data, err := r.redisP.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return decodeSnapshot(data)
}

func (r *RedisRepository) Save(ctx context.Context, messages []Message) error {
	data, err := encodeSnapshot(messages)
	if err != nil {
		return err
	}
	// no expiry: the document is the durable copy
	if err := r.redisP.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %v", ErrPersistence, r.key, err)
	}
	return nil
}
