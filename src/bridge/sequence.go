package bridge

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisSequence allocates message IDs from a counter shared by every relay instance.
type RedisSequence struct {
	client *redis.Client
	key    string
}

// NewRedisSequence uses the counter stored at prefix+"message_id".
func NewRedisSequence(client *redis.Client, prefix string) *RedisSequence {
	return &RedisSequence{client: client, key: prefix + "message_id"}
}

// Next increments and returns the counter.
func (s *RedisSequence) Next(ctx context.Context) (int64, error) {
	return s.client.Incr(ctx, s.key).Result()
}
