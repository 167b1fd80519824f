package cache

import (
	"context"
	"time"
)

//go:generate mockery --name BytesCache --structname MockBytesCache --filename bytes_cache.go --output ./mocks --outpkg mocks

// BytesCache is a best-effort key/value cache. Callers treat every error as a miss.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
