package classify

import "context"

// ChatResult carries a raw completion and its token usage.
type ChatResult struct {
	Text        string
	TotalTokens int
}

// ChatBackend produces one completion for a grounding prompt.
// Implementations wrap provider failures with domain.ErrClassifierUnavailable
// or domain.ErrClassifierRateLimited.
type ChatBackend interface {
	Complete(ctx context.Context, prompt string) (ChatResult, error)
}
