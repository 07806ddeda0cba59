package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyPrefix = "request:"
	idempotencyKeyTTL = 24 * time.Hour
)

// RedisAdapter keeps a write-behind snapshot of stock levels for cheap
// reads and a SetNX key per request id for command idempotency. MySQL
// stays the source of truth for stock; a missing or stale snapshot is
// never an error, callers fall back to the database.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetStockSnapshot(ctx context.Context, productID string, quantity int) error {
	key := stockKeyPrefix + productID
	return r.client.Set(ctx, key, quantity, 0).Err()
}

func (r *RedisAdapter) StockSnapshot(ctx context.Context, productID string) (int, bool, error) {
	key := stockKeyPrefix + productID

	quantity, err := r.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return quantity, true, nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, requestID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyPrefix+requestID, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}
