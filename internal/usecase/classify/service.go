package classify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-oss/trialmatch/internal/domain"
	"github.com/meridian-oss/trialmatch/internal/logger"
	"github.com/meridian-oss/trialmatch/internal/metrics"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultRetryBackoff = 500 * time.Millisecond

	// maxExplanationRunes bounds explanation text to keep reports small.
	maxExplanationRunes = 300

	fallbackExplanation = "Automated eligibility analysis was unavailable for this trial. " +
		"Please review the eligibility criteria with your healthcare provider."
)

// Service classifies one candidate trial against a patient profile through
// an LLM backend. Classification is total: every call returns a MatchResult
// with one of the three defined statuses, falling back to NEEDS_REVIEW on
// backend failure, timeout, or unrecognizable output.
type Service struct {
	backend ChatBackend
	timeout time.Duration
	backoff time.Duration
}

// New creates a classifier with default timeout and retry backoff.
func New(backend ChatBackend) *Service {
	return &Service{
		backend: backend,
		timeout: defaultTimeout,
		backoff: defaultRetryBackoff,
	}
}

// WithTimeout overrides the per-call timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithRetryBackoff overrides the delay before the single retry.
func (s *Service) WithRetryBackoff(d time.Duration) *Service {
	if d > 0 {
		s.backoff = d
	}
	return s
}

// Classify builds the grounding prompt, invokes the backend, and parses the
// verdict. A failing candidate never fails the request: the result degrades
// to NEEDS_REVIEW with a generic explanation.
func (s *Service) Classify(
	ctx context.Context, profile domain.PatientProfile, candidate domain.CandidateMatch,
) domain.MatchResult {
	prompt := buildPrompt(profile, candidate.Trial)

	res, err := s.completeWithRetry(ctx, prompt)
	if err != nil {
		logger.FromContext(ctx).Warn("Classifier call failed, degrading to NEEDS_REVIEW",
			zap.String("nct_id", candidate.Trial.NCTID),
			zap.Error(err),
		)
		metrics.ClassifierVerdictsTotal.WithLabelValues(string(domain.StatusNeedsReview), "fallback").Inc()
		return domain.MatchResult{
			Trial:       candidate.Trial,
			Status:      domain.StatusNeedsReview,
			Explanation: fallbackExplanation,
			Score:       candidate.Score,
		}
	}

	domain.UsageFromContext(ctx).AddClassifierTokens(res.TotalTokens)

	status, explanation := parseVerdict(res.Text)
	if explanation == "" {
		explanation = fallbackExplanation
	}

	metrics.ClassifierVerdictsTotal.WithLabelValues(string(status), "model").Inc()

	return domain.MatchResult{
		Trial:       candidate.Trial,
		Status:      status,
		Explanation: truncateRunes(explanation, maxExplanationRunes),
		Score:       candidate.Score,
	}
}

// completeWithRetry performs the backend call with one retry after backoff.
func (s *Service) completeWithRetry(ctx context.Context, prompt string) (ChatResult, error) {
	res, err := s.complete(ctx, prompt)
	if err == nil {
		return res, nil
	}

	select {
	case <-ctx.Done():
		return ChatResult{}, err
	case <-time.After(s.backoff):
	}

	return s.complete(ctx, prompt)
}

// complete runs one backend call under the per-call timeout, so a hung call
// never blocks the rest of the fan-out.
func (s *Service) complete(ctx context.Context, prompt string) (ChatResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.backend.Complete(callCtx, prompt)
	metrics.ClassifierRequestDuration.Observe(time.Since(start).Seconds())

	return res, err
}
