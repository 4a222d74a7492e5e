package cache

import (
	"context"
	"time"
)

// Cache is a TTL-bounded byte store. Get returns (nil, nil) when the key is
// missing or expired; absence is a normal outcome, not an error. Errors are
// reserved for transport failures to the cache backend.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, content []byte, duration time.Duration) error
}
