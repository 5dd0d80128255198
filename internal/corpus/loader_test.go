package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

type fakeBatchEmbedder struct {
	calls [][]string
	dim   int
	err   error
}

func (f *fakeBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dim)
		vec[0] = 1
		vecs[i] = vec
	}
	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}

func writeCorpusFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trials.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write corpus file: %v", err)
	}
	return path
}

func TestLoaderPrecomputedEmbeddings(t *testing.T) {
	path := writeCorpusFile(t, `[
		{"nct_id": "NCT0001", "title": "Trial A", "embedding": [1, 0]},
		{"nct_id": "NCT0002", "title": "Trial B", "embedding": [0, 1]}
	]`)

	loader := NewLoader(path, nil, zap.NewNop())
	snap, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Len() != 2 {
		t.Fatalf("expected 2 trials, got %d", snap.Len())
	}
	if snap.Dimension() != 2 {
		t.Errorf("expected dimension 2, got %d", snap.Dimension())
	}
	if snap.Version() == "" {
		t.Error("snapshot version must be derived from file content")
	}
}

func TestLoaderBackfillsMissingEmbeddings(t *testing.T) {
	path := writeCorpusFile(t, `[
		{"nct_id": "NCT0001", "title": "Trial A", "embedding": [1, 0, 0]},
		{"nct_id": "NCT0002", "title": "Trial B"}
	]`)

	embedder := &fakeBatchEmbedder{dim: 3}
	loader := NewLoader(path, embedder, zap.NewNop())

	snap, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(embedder.calls) != 1 {
		t.Fatalf("expected 1 backfill call, got %d", len(embedder.calls))
	}
	if len(embedder.calls[0]) != 1 {
		t.Fatalf("expected 1 text in backfill batch, got %d", len(embedder.calls[0]))
	}
	if snap.Vector(1)[0] != 1 {
		t.Error("backfilled vector not stored at the record's position")
	}
}

func TestLoaderMissingEmbedderFails(t *testing.T) {
	path := writeCorpusFile(t, `[{"nct_id": "NCT0001", "title": "Trial A"}]`)

	loader := NewLoader(path, nil, zap.NewNop())
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatal("expected error when embeddings are missing and no embedder is configured")
	}
}

func TestLoaderRejectsRecordWithoutID(t *testing.T) {
	path := writeCorpusFile(t, `[{"title": "Trial A", "embedding": [1]}]`)

	loader := NewLoader(path, nil, zap.NewNop())
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatal("expected error for record without nct_id")
	}
}

func TestLoaderVersionStable(t *testing.T) {
	path := writeCorpusFile(t, `[{"nct_id": "NCT0001", "embedding": [1]}]`)

	loader := NewLoader(path, nil, zap.NewNop())
	s1, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s2, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1.Version() != s2.Version() {
		t.Errorf("same file content must produce the same version: %s vs %s", s1.Version(), s2.Version())
	}
}
