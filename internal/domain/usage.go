package domain

import (
	"context"
	"sync"
)

type tokenUsageKey struct{}

// TokenUsage collects backend token usage for a single HTTP request.
// The handler puts a mutable pointer into the context before calling the
// pipeline; embedding and classifier layers write after each backend call;
// the handler reads it for response headers. Safe for concurrent writers:
// classifier calls fan out within one request.
type TokenUsage struct {
	mu               sync.Mutex
	embeddingTokens  int
	classifierTokens int
	used             bool
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *TokenUsage) {
	u := &TokenUsage{}
	return context.WithValue(ctx, tokenUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *TokenUsage {
	u, _ := ctx.Value(tokenUsageKey{}).(*TokenUsage)
	return u
}

// AddEmbeddingTokens records tokens consumed by embedding calls.
func (u *TokenUsage) AddEmbeddingTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.embeddingTokens += n
	u.used = true
}

// AddClassifierTokens records tokens consumed by classifier calls.
func (u *TokenUsage) AddClassifierTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.classifierTokens += n
	u.used = true
}

// EmbeddingTokens returns the recorded embedding token count.
func (u *TokenUsage) EmbeddingTokens() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.embeddingTokens
}

// ClassifierTokens returns the recorded classifier token count.
func (u *TokenUsage) ClassifierTokens() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.classifierTokens
}

// Used reports whether any backend call recorded usage.
func (u *TokenUsage) Used() bool {
	if u == nil {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.used
}
