package retrieval

import (
	"errors"
	"testing"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

func TestComposeQuery(t *testing.T) {
	profile := domain.PatientProfile{
		Age:         55,
		Gender:      "Male",
		Conditions:  "Non-Small Cell Lung Cancer",
		Medications: "Carboplatin",
		Biomarkers:  "PD-L1: 60%",
	}

	query, err := ComposeQuery(profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Age: 55 years old | Gender: Male | Conditions: Non-Small Cell Lung Cancer | " +
		"Current medications: Carboplatin | Biomarkers: PD-L1: 60%"
	if query != want {
		t.Errorf("query mismatch:\n got: %s\nwant: %s", query, want)
	}
}

func TestComposeQuerySkipsEmptyOptionalFields(t *testing.T) {
	profile := domain.PatientProfile{Age: 40, Conditions: "Type 2 Diabetes"}

	query, err := ComposeQuery(profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Age: 40 years old | Conditions: Type 2 Diabetes"
	if query != want {
		t.Errorf("query mismatch:\n got: %s\nwant: %s", query, want)
	}
}

func TestComposeQueryDeterministic(t *testing.T) {
	profile := domain.PatientProfile{Age: 62, Gender: "Female", Conditions: "Breast Cancer"}

	first, err := ComposeQuery(profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := ComposeQuery(profile)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatal("same profile must always produce the same query string")
		}
	}
}

func TestComposeQueryInvalidProfile(t *testing.T) {
	_, err := ComposeQuery(domain.PatientProfile{Age: 55})
	if !errors.Is(err, domain.ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
}
