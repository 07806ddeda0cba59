package port

import "context"

type Cache interface {
	// SetStockSnapshot refreshes the cached on-hand quantity after a commit.
	// Best-effort: callers log failures and move on.
	SetStockSnapshot(ctx context.Context, productID string, quantity int) error

	// StockSnapshot returns the cached quantity; ok is false on a miss.
	StockSnapshot(ctx context.Context, productID string) (quantity int, ok bool, err error)

	// SetIdempotency claims a request key, returning false if already claimed.
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
