package cache

import (
	"context"
	"time"
)

// TTL tiers by data volatility. Detail and list views tolerate hour-scale
// staleness because the bus deletes them on mutation; per-user status checks
// are minute-scale.
const (
	DetailTTL = 1 * time.Hour
	ListTTL   = 1 * time.Hour
	StatusTTL = 5 * time.Minute
)

// Store is the shared key-value cache contract. Absence of an entry is never
// an error, only a performance cost: Get returns (nil, nil) on miss and
// every read path must remain correct against an empty cache.
//
// The invalidation bus is the only component permitted to delete proactively;
// all other writers only populate on miss.
type Store interface {
	// Get retrieves the raw bytes for a key. Returns nil, nil on miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the specified TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteMany removes a batch of keys in one round trip and returns the
	// number the backend reported as deleted.
	DeleteMany(ctx context.Context, keys []string) (int64, error)

	// Flush drops every key. Administrative use only.
	Flush(ctx context.Context) error

	// Ping verifies the backend is alive.
	Ping(ctx context.Context) error
}
