package corpus

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

// Snapshot is one immutable, versioned view of the trial corpus with
// precomputed embeddings. Shared read-only across all concurrent requests;
// nothing in the matching path mutates it.
type Snapshot struct {
	version string
	records []domain.TrialRecord
	vectors [][]float32
	norms   []float64
	dim     int
}

// NewSnapshot builds a snapshot from records and their embedding vectors.
// All vectors must share one dimension; a violating vector rejects the whole
// snapshot here, at ingestion, never at query time.
func NewSnapshot(version string, records []domain.TrialRecord, vectors [][]float32) (*Snapshot, error) {
	if len(records) != len(vectors) {
		return nil, fmt.Errorf("records/vectors length mismatch: %d vs %d", len(records), len(vectors))
	}

	dim := 0
	norms := make([]float64, len(vectors))
	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, fmt.Errorf("trial %s has an empty vector: %w", records[i].NCTID, domain.ErrVectorDimMismatch)
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("trial %s has dimension %d, snapshot has %d: %w",
				records[i].NCTID, len(vec), dim, domain.ErrVectorDimMismatch)
		}
		norms[i] = vectorNorm(vec)
	}

	return &Snapshot{
		version: version,
		records: records,
		vectors: vectors,
		norms:   norms,
		dim:     dim,
	}, nil
}

// Version identifies the ingestion run that produced this snapshot.
func (s *Snapshot) Version() string { return s.version }

// Len returns the number of trials in the snapshot.
func (s *Snapshot) Len() int { return len(s.records) }

// Dimension returns the shared embedding dimension. Zero for an empty snapshot.
func (s *Snapshot) Dimension() int { return s.dim }

// Record returns the trial at insertion position i.
func (s *Snapshot) Record(i int) domain.TrialRecord { return s.records[i] }

// Vector returns the embedding at insertion position i.
func (s *Snapshot) Vector(i int) []float32 { return s.vectors[i] }

// Norm returns the precomputed euclidean norm of vector i.
func (s *Snapshot) Norm(i int) float64 { return s.norms[i] }

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Provider hands out the current corpus snapshot. Swaps are atomic from the
// reader's point of view: a reader either sees the old snapshot or the new
// one, never a partially-updated corpus.
type Provider struct {
	current atomic.Pointer[Snapshot]
}

// NewProvider creates a provider with no snapshot loaded.
func NewProvider() *Provider {
	return &Provider{}
}

// Swap replaces the current snapshot. In-flight readers keep the snapshot
// they already hold.
func (p *Provider) Swap(s *Snapshot) {
	p.current.Store(s)
}

// Current returns the active snapshot, or false when none has been loaded.
func (p *Provider) Current() (*Snapshot, bool) {
	s := p.current.Load()
	return s, s != nil
}
