package quota

import (
	"context"
	"time"
)

// Store atomically increments a window-bucket counter and returns the
// post-increment count. The increment must be linearizable per key: two
// concurrent requests for the same key can never both observe a stale count.
type Store interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
