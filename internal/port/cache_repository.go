package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// AcquireLock sets key to token if absent, returns false if someone else holds it
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// ReleaseLock deletes key only while it still holds token
	ReleaseLock(ctx context.Context, key, token string) error
}
