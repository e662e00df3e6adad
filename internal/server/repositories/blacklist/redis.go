package blacklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "blacklist:"

// RedisRepository keeps one key per revoked token id. The value is the
// token expiry in unix nanoseconds and the key TTL matches it, so Redis
// prunes entries by itself.
type RedisRepository struct {
	rdb redis.UniversalClient
}

func NewRedisRepository(rdb redis.UniversalClient) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

func (r *RedisRepository) Add(ctx context.Context, entry *models.BlacklistEntry) error {
	ttl := entry.ExpiresAt.Sub(entry.AddedAt)
	if ttl <= 0 {
		// already expired, nothing left to revoke
		return nil
	}
	err := r.rdb.SetNX(ctx, keyPrefix+entry.TokenID, entry.ExpiresAt.UnixNano(), ttl).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Exists(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	exp, err := r.rdb.Get(ctx, keyPrefix+tokenID).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return time.Unix(0, exp).After(now), nil
}

// DeleteExpired is a no-op: key TTLs do the work.
func (r *RedisRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
