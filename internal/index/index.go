// Package index implements cosine top-K retrieval over the corpus snapshot.
// Lookups are in-process and lock-free: readers resolve the snapshot once per
// search and never block each other or snapshot swaps.
package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/meridian-oss/trialmatch/internal/corpus"
	"github.com/meridian-oss/trialmatch/internal/domain"
)

// Source hands out the current corpus snapshot.
type Source interface {
	Current() (*corpus.Snapshot, bool)
}

// Index ranks corpus trials by cosine similarity to a query vector.
type Index struct {
	source Source
}

// New creates an index over the given snapshot source.
func New(source Source) *Index {
	return &Index{source: source}
}

// Search returns up to k trials ranked by descending cosine similarity.
// An empty corpus yields an empty result, not an error; a corpus that was
// never published yields ErrCorpusUnavailable. Ties are broken by corpus
// insertion order, keeping retrieval deterministic for identical inputs.
func (ix *Index) Search(query []float32, k int) ([]domain.CandidateMatch, error) {
	snap, ok := ix.source.Current()
	if !ok {
		return nil, domain.ErrCorpusUnavailable
	}
	if k <= 0 || snap.Len() == 0 {
		return nil, nil
	}

	if len(query) != snap.Dimension() {
		return nil, fmt.Errorf("query has dimension %d, corpus has %d: %w",
			len(query), snap.Dimension(), domain.ErrVectorDimMismatch)
	}

	queryNorm := norm(query)
	if queryNorm == 0 {
		return nil, nil
	}

	n := snap.Len()
	order := make([]int, n)
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		order[i] = i
		scores[i] = cosine(query, queryNorm, snap.Vector(i), snap.Norm(i))
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > n {
		k = n
	}

	matches := make([]domain.CandidateMatch, k)
	for rank := 0; rank < k; rank++ {
		i := order[rank]
		matches[rank] = domain.CandidateMatch{
			Trial: snap.Record(i),
			Score: scores[i],
			Rank:  rank,
		}
	}
	return matches, nil
}

func cosine(query []float32, queryNorm float64, vec []float32, vecNorm float64) float64 {
	if vecNorm == 0 {
		return 0
	}
	var dot float64
	for i := range query {
		dot += float64(query[i]) * float64(vec[i])
	}
	return dot / (queryNorm * vecNorm)
}

func norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
