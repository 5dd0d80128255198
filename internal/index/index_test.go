package index

import (
	"errors"
	"sync"
	"testing"

	"github.com/meridian-oss/trialmatch/internal/corpus"
	"github.com/meridian-oss/trialmatch/internal/domain"
)

func newSnapshot(t *testing.T, ids []string, vectors [][]float32) *corpus.Snapshot {
	t.Helper()
	records := make([]domain.TrialRecord, len(ids))
	for i, id := range ids {
		records[i] = domain.TrialRecord{NCTID: id}
	}
	snap, err := corpus.NewSnapshot("test", records, vectors)
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return snap
}

func newIndex(t *testing.T, ids []string, vectors [][]float32) *Index {
	t.Helper()
	p := corpus.NewProvider()
	p.Swap(newSnapshot(t, ids, vectors))
	return New(p)
}

func TestSearchRanksByCosine(t *testing.T) {
	ix := newIndex(t,
		[]string{"NCT0001", "NCT0002", "NCT0003"},
		[][]float32{
			{0, 1, 0},  // orthogonal
			{1, 0, 0},  // identical direction
			{1, 1, 0},  // in between
		},
	)

	matches, err := ix.Search([]float32{2, 0, 0}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}

	wantOrder := []string{"NCT0002", "NCT0003", "NCT0001"}
	for i, want := range wantOrder {
		if matches[i].Trial.NCTID != want {
			t.Errorf("rank %d: expected %s, got %s", i, want, matches[i].Trial.NCTID)
		}
		if matches[i].Rank != i {
			t.Errorf("rank %d: stored rank is %d", i, matches[i].Rank)
		}
	}

	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("scores must be non-increasing by rank: %f > %f at rank %d",
				matches[i].Score, matches[i-1].Score, i)
		}
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	// Two trials with identical vectors: same score, insertion order wins.
	ix := newIndex(t,
		[]string{"NCT0002", "NCT0001"},
		[][]float32{{1, 0}, {1, 0}},
	)

	matches, err := ix.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matches[0].Trial.NCTID != "NCT0002" || matches[1].Trial.NCTID != "NCT0001" {
		t.Errorf("ties must keep insertion order, got %s then %s",
			matches[0].Trial.NCTID, matches[1].Trial.NCTID)
	}
}

func TestSearchKLargerThanCorpus(t *testing.T) {
	ix := newIndex(t, []string{"NCT0001", "NCT0002"}, [][]float32{{1, 0}, {0, 1}})

	matches, err := ix.Search([]float32{1, 1}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("K larger than corpus must return all records, got %d", len(matches))
	}
}

func TestSearchEmptyCorpus(t *testing.T) {
	ix := newIndex(t, nil, nil)

	matches, err := ix.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("empty corpus is not an error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected empty result, got %d matches", len(matches))
	}
}

func TestSearchNoSnapshotLoaded(t *testing.T) {
	ix := New(corpus.NewProvider())

	_, err := ix.Search([]float32{1, 0}, 5)
	if !errors.Is(err, domain.ErrCorpusUnavailable) {
		t.Fatalf("expected ErrCorpusUnavailable, got %v", err)
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix := newIndex(t, []string{"NCT0001"}, [][]float32{{1, 0, 0}})

	_, err := ix.Search([]float32{1, 0}, 5)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestSearchDeterministic(t *testing.T) {
	ix := newIndex(t,
		[]string{"NCT0001", "NCT0002", "NCT0003", "NCT0004"},
		[][]float32{{1, 0}, {0.5, 0.5}, {0, 1}, {0.7, 0.3}},
	)
	query := []float32{0.6, 0.4}

	first, err := ix.Search(query, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for run := 0; run < 10; run++ {
		again, err := ix.Search(query, 4)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := range first {
			if again[i].Trial.NCTID != first[i].Trial.NCTID {
				t.Fatalf("run %d: order changed at rank %d", run, i)
			}
		}
	}
}

func TestSearchConcurrentReadersDuringSwap(t *testing.T) {
	p := corpus.NewProvider()
	p.Swap(newSnapshot(t, []string{"NCT0001"}, [][]float32{{1, 0}}))
	ix := New(p)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			p.Swap(newSnapshot(t, []string{"NCT0001", "NCT0002"}, [][]float32{{1, 0}, {0, 1}}))
		}
		close(stop)
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				matches, err := ix.Search([]float32{1, 0}, 5)
				if err != nil {
					t.Errorf("search during swap: %v", err)
					return
				}
				if len(matches) != 1 && len(matches) != 2 {
					t.Errorf("reader observed a partial corpus: %d matches", len(matches))
					return
				}
			}
		}()
	}

	wg.Wait()
}
