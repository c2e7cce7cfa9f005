package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "delivery-attempts:"

// RedisCounter shares attempt counts across router instances, so a message
// bouncing between consumers still hits the dead-letter cap. Counts expire
// after ttl: a message that stays out of trouble that long has either been
// processed or dead-lettered already.
type RedisCounter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisCounter {
	return &RedisCounter{client: client, ttl: ttl}
}

func (c *RedisCounter) Incr(ctx context.Context, fingerprint string) (int, error) {
	key := keyPrefix + fingerprint

	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment delivery attempts: %w", err)
	}
	if count == 1 {
		// Best effort; an unexpired counter only delays dead-lettering.
		c.client.Expire(ctx, key, c.ttl)
	}
	return int(count), nil
}
