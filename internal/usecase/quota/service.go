// Package quota implements the fixed-window rate governor that admits or
// denies a request before any retrieval or classification work is performed.
package quota

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-oss/trialmatch/internal/logger"
	"github.com/meridian-oss/trialmatch/internal/metrics"
)

const keyPrefix = "trialmatch:quota:"

// Decision is the governor's admit/deny outcome for one request.
type Decision struct {
	Allowed    bool
	Reason     string
	Remaining  int64
	RetryAfter time.Duration
}

// Service enforces a per-identity request quota over a fixed window.
// Counters reset to zero exactly at each window boundary (unix time
// truncated to the window size), not decayed.
type Service struct {
	store  Store
	limit  int64
	window time.Duration
}

// New creates a governor with the given quota per window.
func New(store Store, limit int64, window time.Duration) *Service {
	return &Service{store: store, limit: limit, window: window}
}

// Check test-and-increments the identity's counter for the current window.
// The single atomic increment is the admission decision: there is no separate
// read that could race with another request from the same identity.
//
// A store failure admits the request: degraded quota accounting is preferred
// over refusing all traffic when the backing store is down.
func (s *Service) Check(ctx context.Context, identity string) Decision {
	now := time.Now().UTC()
	windowStart := now.Truncate(s.window)
	key := fmt.Sprintf("%s%s:%d", keyPrefix, identity, windowStart.Unix())

	// TTL outlives the window so late readers of a finished bucket still
	// see it, then the store reclaims it.
	count, err := s.store.Incr(ctx, key, 2*s.window)
	if err != nil {
		logger.FromContext(ctx).Warn("Quota store failure, admitting request",
			zap.String("identity", identity),
			zap.Error(err),
		)
		metrics.QuotaDecisionsTotal.WithLabelValues("admit").Inc()
		return Decision{Allowed: true, Reason: "quota store unavailable"}
	}

	if count > s.limit {
		metrics.QuotaDecisionsTotal.WithLabelValues("deny").Inc()
		return Decision{
			Allowed:    false,
			Reason:     fmt.Sprintf("quota of %d requests per %s exceeded", s.limit, s.window),
			Remaining:  0,
			RetryAfter: windowStart.Add(s.window).Sub(now),
		}
	}

	metrics.QuotaDecisionsTotal.WithLabelValues("admit").Inc()
	return Decision{Allowed: true, Remaining: s.limit - count}
}

// Limit returns the configured quota.
func (s *Service) Limit() int64 { return s.limit }

// Window returns the configured window size.
func (s *Service) Window() time.Duration { return s.window }
