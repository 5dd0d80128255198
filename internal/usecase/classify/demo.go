package classify

import (
	"context"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

const demoExplanation = "This trial appears relevant based on similarity matching. " +
	"Automated eligibility analysis is disabled in demonstration mode; " +
	"please consult your healthcare provider for a detailed assessment."

// DemoClassifier is the demonstration-mode stand-in used when no LLM backend
// credential is configured. It is selected explicitly by the composition
// root, never by a silent runtime probe.
type DemoClassifier struct{}

// NewDemo creates a demonstration-mode classifier.
func NewDemo() *DemoClassifier {
	return &DemoClassifier{}
}

// Classify returns a placeholder NEEDS_REVIEW verdict without calling any backend.
func (*DemoClassifier) Classify(
	_ context.Context, _ domain.PatientProfile, candidate domain.CandidateMatch,
) domain.MatchResult {
	return domain.MatchResult{
		Trial:       candidate.Trial,
		Status:      domain.StatusNeedsReview,
		Explanation: demoExplanation,
		Score:       candidate.Score,
	}
}
