package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"enrollgate/internal/enrollment"
	"enrollgate/internal/shard"
)

const keyPrefix = "flight-shard:"

// claimAttempts bounds the SETNX/GET loop when a claim expires between the
// two calls.
const claimAttempts = 3

// RedisRegistry implements FlightRegistry on a shared Redis instance so the
// claim is visible across router instances. Claims expire after ttl; by then
// the flight exists in a shard store and the resolver's affinity check takes
// over.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, ttl: ttl}
}

func (r *RedisRegistry) Claim(ctx context.Context, key enrollment.FlightKey, candidate shard.ID) (shard.ID, error) {
	redisKey := keyPrefix + key.String()

	for range claimAttempts {
		claimed, err := r.client.SetNX(ctx, redisKey, candidate.String(), r.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("claim flight assignment: %w", err)
		}
		if claimed {
			return candidate, nil
		}

		winner, err := r.client.Get(ctx, redisKey).Result()
		if err == redis.Nil {
			// Claim expired between SETNX and GET; try again.
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read flight assignment: %w", err)
		}
		return shard.Parse(winner)
	}
	return "", fmt.Errorf("flight assignment for %s kept expiring", key)
}
