package lock

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotObtained = errors.New("lock_not_obtained")

// Locker serializes work on a key. Acquire blocks until the lock is held,
// ctx is done, or the backend gives up.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

// Key joins parts into a namespaced lock key, e.g. royalti:ingest:42:royalty.
func Key(parts ...string) string {
	return "royalti:" + strings.Join(parts, ":")
}
