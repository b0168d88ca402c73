package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "authd:revoked:"

// RedisStore keeps the blacklist in a shared Redis so revocation is
// visible to every service instance. Expiry is delegated to Redis TTLs.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	err := s.client.Set(ctx, redisKeyPrefix+token, "1", ttl).Err()
	if err != nil {
		return fmt.Errorf("error while revoking token in redis. Err: %w", err)
	}

	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKeyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("error while checking token in redis. Err: %w", err)
	}

	return n > 0, nil
}
