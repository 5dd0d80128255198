package retrieval

import (
	"context"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index ranks corpus trials against a query vector.
type Index interface {
	Search(query []float32, k int) ([]domain.CandidateMatch, error)
}
