package retrieval

import (
	"context"
	"fmt"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

// Service turns a patient profile into ranked trial candidates:
// compose query -> embed -> top-K similarity search. Retrieval is
// all-or-nothing per request; it never returns a partial candidate list.
type Service struct {
	embed Embedder
	index Index
	topK  int
}

// New creates a candidate retriever with the configured K.
func New(embed Embedder, index Index, topK int) *Service {
	return &Service{embed: embed, index: index, topK: topK}
}

// TopK returns the configured candidate count.
func (s *Service) TopK() int { return s.topK }

// Retrieve returns up to K candidates ranked by similarity.
// Profile validation failures and embedding failures propagate; an empty
// corpus flows through as an empty candidate list.
func (s *Service) Retrieve(ctx context.Context, profile domain.PatientProfile) ([]domain.CandidateMatch, error) {
	query, err := ComposeQuery(profile)
	if err != nil {
		return nil, err
	}

	embRes, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	domain.UsageFromContext(ctx).AddEmbeddingTokens(embRes.TotalTokens)

	candidates, err := s.index.Search(embRes.Embedding, s.topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return candidates, nil
}
