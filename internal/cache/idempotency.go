package cache

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed keys so that duplicate deliveries of
// the same event (for example a close timer firing twice) run only once
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Forget drops a mark so the key can be processed again after a failure
	Forget(ctx context.Context, key string) error

	Close() error
}
