package domain

import "strings"

// TrialRecord is one clinical trial from the corpus snapshot.
// Fields mirror the ClinicalTrials.gov study shape produced by the
// offline ingestion collaborator.
type TrialRecord struct {
	NCTID       string
	Title       string
	Summary     string
	Conditions  string
	Phase       string
	Eligibility string
	Gender      string
	MinAge      string
	MaxAge      string
	StudyType   string
	Locations   string
}

// EmbeddingText builds the canonical text representation used to embed the
// trial. Field order and labels are fixed: corpus vectors and query vectors
// must stay comparable across snapshot rebuilds.
func (t TrialRecord) EmbeddingText() string {
	minAge := t.MinAge
	if minAge == "" {
		minAge = "Any"
	}
	maxAge := t.MaxAge
	if maxAge == "" {
		maxAge = "Any"
	}
	gender := t.Gender
	if gender == "" {
		gender = "All"
	}

	parts := []string{
		"Title: " + t.Title,
		"Summary: " + t.Summary,
		"Conditions: " + t.Conditions,
		"Phase: " + t.Phase,
		"Eligibility: " + t.Eligibility,
		"Age Range: " + minAge + " to " + maxAge,
		"Gender: " + gender,
		"Study Type: " + t.StudyType,
	}
	return strings.Join(parts, " | ")
}
