package health

import (
	"context"

	"github.com/meridian-oss/trialmatch/internal/corpus"
)

// CorpusSource reports whether a trial snapshot is loaded.
type CorpusSource interface {
	Current() (*corpus.Snapshot, bool)
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// StorePinger checks quota store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}
