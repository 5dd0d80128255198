// Package embcache provides a caching decorator for query embeddings.
// Patient profiles repeat across retries and paging, and the embedding call
// is the most expensive deterministic step of retrieval.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

// defaultMaxEntries bounds the in-process cache.
const defaultMaxEntries = 4096

// CachedEmbedder caches embeddings in process, keyed by content hash.
type CachedEmbedder struct {
	inner      domain.Embedder
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	mu         sync.Mutex
	entries    map[string][]float32
	order      []string
	maxEntries int
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(inner domain.Embedder, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		cacheTotal: cacheTotal,
		logger:     logger,
		entries:    make(map[string][]float32),
		maxEntries: defaultMaxEntries,
	}
}

// WithMaxEntries overrides the cache capacity.
func (c *CachedEmbedder) WithMaxEntries(n int) *CachedEmbedder {
	if n > 0 {
		c.maxEntries = n
	}
	return c
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EmbeddingResult from inner.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := cacheKey(text)

	if vec, ok := c.get(key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.put(key, result.Embedding)
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vec, ok := c.entries[key]
	return vec, ok
}

// put inserts under the capacity bound, evicting the oldest entries first.
func (c *CachedEmbedder) put(key string, vec []float32) {
	if len(vec) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = vec
	c.order = append(c.order, key)
}
