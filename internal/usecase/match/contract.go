package match

import (
	"context"

	"github.com/meridian-oss/trialmatch/internal/domain"
	"github.com/meridian-oss/trialmatch/internal/usecase/quota"
)

// Governor decides whether a request identity may proceed.
type Governor interface {
	Check(ctx context.Context, identity string) quota.Decision
}

// Retriever produces ranked trial candidates for a patient profile.
type Retriever interface {
	Retrieve(ctx context.Context, profile domain.PatientProfile) ([]domain.CandidateMatch, error)
}

// Classifier produces an eligibility verdict for one candidate. It must be
// total: implementations return a result for every call.
type Classifier interface {
	Classify(ctx context.Context, profile domain.PatientProfile, candidate domain.CandidateMatch) domain.MatchResult
}
