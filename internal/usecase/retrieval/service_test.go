package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

type mockEmbedder struct {
	vec      []float32
	err      error
	lastText string
	calls    int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	m.lastText = text
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 7}, nil
}

type mockIndex struct {
	matches []domain.CandidateMatch
	err     error
	lastK   int
	lastVec []float32
}

func (m *mockIndex) Search(query []float32, k int) ([]domain.CandidateMatch, error) {
	m.lastK = k
	m.lastVec = query
	return m.matches, m.err
}

func validProfile() domain.PatientProfile {
	return domain.PatientProfile{Age: 55, Gender: "Male", Conditions: "NSCLC"}
}

func TestRetrieve(t *testing.T) {
	embed := &mockEmbedder{vec: []float32{0.1, 0.2}}
	ix := &mockIndex{matches: []domain.CandidateMatch{
		{Trial: domain.TrialRecord{NCTID: "NCT0001"}, Score: 0.9, Rank: 0},
	}}
	svc := New(embed, ix, 5)

	candidates, err := svc.Retrieve(context.Background(), validProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if ix.lastK != 5 {
		t.Errorf("expected K=5, got %d", ix.lastK)
	}
	if embed.lastText == "" {
		t.Error("embedder must receive the composed query")
	}
}

func TestRetrieveInvalidProfileSkipsEmbedding(t *testing.T) {
	embed := &mockEmbedder{vec: []float32{0.1}}
	svc := New(embed, &mockIndex{}, 5)

	_, err := svc.Retrieve(context.Background(), domain.PatientProfile{Age: 55})
	if !errors.Is(err, domain.ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
	if embed.calls != 0 {
		t.Error("no embedding work before validation passes")
	}
}

func TestRetrieveEmbeddingFailureAborts(t *testing.T) {
	embed := &mockEmbedder{err: errors.New("backend down")}
	ix := &mockIndex{}
	svc := New(embed, ix, 5)

	_, err := svc.Retrieve(context.Background(), validProfile())
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if ix.lastVec != nil {
		t.Error("index must not be queried after an embedding failure")
	}
}

func TestRetrieveEmptyCorpusFlowsThrough(t *testing.T) {
	svc := New(&mockEmbedder{vec: []float32{1}}, &mockIndex{}, 5)

	candidates, err := svc.Retrieve(context.Background(), validProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected empty candidate list, got %d", len(candidates))
	}
}

func TestRetrieveRecordsTokenUsage(t *testing.T) {
	svc := New(&mockEmbedder{vec: []float32{1}}, &mockIndex{}, 5)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	if _, err := svc.Retrieve(ctx, validProfile()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.EmbeddingTokens() != 7 {
		t.Errorf("expected 7 embedding tokens recorded, got %d", usage.EmbeddingTokens())
	}
}
