package domain

// Status is the eligibility verdict for one trial.
type Status string

const (
	// StatusEligible indicates the patient appears to meet the trial criteria.
	StatusEligible Status = "ELIGIBLE"
	// StatusNotEligible indicates the patient clearly fails a criterion.
	StatusNotEligible Status = "NOT_ELIGIBLE"
	// StatusNeedsReview is the deliberate non-committal verdict used whenever
	// the system cannot confidently classify eligibility.
	StatusNeedsReview Status = "NEEDS_REVIEW"
)

// Statuses lists all verdicts in reporting order.
var Statuses = []Status{StatusEligible, StatusNotEligible, StatusNeedsReview}

// Valid reports whether s is one of the defined verdicts.
func (s Status) Valid() bool {
	switch s {
	case StatusEligible, StatusNotEligible, StatusNeedsReview:
		return true
	}
	return false
}

// CandidateMatch is one trial returned by retrieval, before classification.
// Rank is zero-based; scores are non-increasing by rank, ties broken by
// corpus insertion order.
type CandidateMatch struct {
	Trial TrialRecord
	Score float64
	Rank  int
}

// MatchResult is the classified verdict for one candidate.
type MatchResult struct {
	Trial       TrialRecord
	Status      Status
	Explanation string
	Score       float64
}

// Report is the aggregated outcome of one match request. Matches preserve
// retrieval rank order and Counts always carries all three statuses, zeroes
// included, so consumers never branch on missing keys.
type Report struct {
	Matches []MatchResult
	Counts  map[Status]int
	Total   int
}

// NewReport aggregates classified results into a report.
func NewReport(matches []MatchResult) Report {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	for _, m := range matches {
		counts[m.Status]++
	}
	return Report{Matches: matches, Counts: counts, Total: len(matches)}
}
