package corpus

import (
	"errors"
	"testing"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

func TestNewSnapshot(t *testing.T) {
	records := []domain.TrialRecord{
		{NCTID: "NCT0001", Title: "Trial A"},
		{NCTID: "NCT0002", Title: "Trial B"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
	}

	snap, err := NewSnapshot("v1", records, vectors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Len() != 2 {
		t.Errorf("expected 2 records, got %d", snap.Len())
	}
	if snap.Dimension() != 3 {
		t.Errorf("expected dimension 3, got %d", snap.Dimension())
	}
	if snap.Version() != "v1" {
		t.Errorf("expected version v1, got %s", snap.Version())
	}
	if snap.Record(1).NCTID != "NCT0002" {
		t.Errorf("record order must follow insertion order")
	}
	if snap.Norm(0) != 1 {
		t.Errorf("expected unit norm, got %f", snap.Norm(0))
	}
}

func TestNewSnapshotDimensionMismatch(t *testing.T) {
	records := []domain.TrialRecord{
		{NCTID: "NCT0001"},
		{NCTID: "NCT0002"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1},
	}

	_, err := NewSnapshot("v1", records, vectors)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestNewSnapshotEmptyVector(t *testing.T) {
	_, err := NewSnapshot("v1", []domain.TrialRecord{{NCTID: "NCT0001"}}, [][]float32{nil})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestNewSnapshotEmptyCorpus(t *testing.T) {
	snap, err := NewSnapshot("v1", nil, nil)
	if err != nil {
		t.Fatalf("empty corpus is valid: %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("expected empty snapshot, got %d records", snap.Len())
	}
}

func TestProviderSwap(t *testing.T) {
	p := NewProvider()

	if _, ok := p.Current(); ok {
		t.Fatal("new provider must have no snapshot")
	}

	s1, _ := NewSnapshot("v1", []domain.TrialRecord{{NCTID: "NCT0001"}}, [][]float32{{1}})
	p.Swap(s1)

	got, ok := p.Current()
	if !ok || got.Version() != "v1" {
		t.Fatalf("expected snapshot v1 after swap, got %+v ok=%v", got, ok)
	}

	s2, _ := NewSnapshot("v2", nil, nil)
	p.Swap(s2)

	got, _ = p.Current()
	if got.Version() != "v2" {
		t.Errorf("expected snapshot v2 after second swap, got %s", got.Version())
	}
	// The reference obtained before the swap still points to the old snapshot.
	if s1.Version() != "v1" {
		t.Error("swapped-out snapshot must stay immutable")
	}
}
