// Package match orchestrates the full pipeline for one request: quota check,
// candidate retrieval, concurrent per-candidate classification, and report
// aggregation.
package match

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/meridian-oss/trialmatch/internal/domain"
	"github.com/meridian-oss/trialmatch/internal/logger"
)

// defaultMinScore admits nearly every retrieved candidate; cosine scores
// below it indicate the query and trial point in opposite directions.
const defaultMinScore = -0.5

// Service runs the matching pipeline. Classification of the K candidates
// fans out over a shared bounded worker pool so one slow request cannot
// monopolize classifier throughput.
type Service struct {
	governor   Governor
	retriever  Retriever
	classifier Classifier
	pool       *ants.Pool
	minScore   float64
}

// New creates the pipeline orchestrator. concurrency bounds in-flight
// classifier calls across all requests; zero or negative picks a CPU-based
// default.
func New(governor Governor, retriever Retriever, classifier Classifier, concurrency int) (*Service, error) {
	if concurrency < 1 {
		concurrency = runtime.NumCPU()
		if concurrency < 1 {
			concurrency = 1
		}
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier pool: %w", err)
	}

	return &Service{
		governor:   governor,
		retriever:  retriever,
		classifier: classifier,
		pool:       pool,
		minScore:   defaultMinScore,
	}, nil
}

// WithMinScore overrides the similarity cutoff below which candidates are
// dropped without a classifier call.
func (s *Service) WithMinScore(score float64) *Service {
	s.minScore = score
	return s
}

// Match executes one request end to end. The governor runs before any
// retrieval or classification work; a denied request performs no model calls
// and returns ErrQuotaExceeded. Results preserve retrieval rank order
// regardless of classification completion order.
func (s *Service) Match(ctx context.Context, identity string, profile domain.PatientProfile) (domain.Report, error) {
	decision := s.governor.Check(ctx, identity)
	if !decision.Allowed {
		return domain.Report{}, fmt.Errorf("%w: %s", domain.ErrQuotaExceeded, decision.Reason)
	}

	candidates, err := s.retriever.Retrieve(ctx, profile)
	if err != nil {
		return domain.Report{}, err
	}
	candidates = s.aboveMinScore(ctx, candidates)
	if len(candidates) == 0 {
		return domain.NewReport(nil), nil
	}

	results := s.classifyAll(ctx, profile, candidates)
	return domain.NewReport(results), nil
}

// aboveMinScore drops low-similarity candidates before any classifier spend.
// Retrieval rank order is preserved for the survivors.
func (s *Service) aboveMinScore(ctx context.Context, candidates []domain.CandidateMatch) []domain.CandidateMatch {
	kept := make([]domain.CandidateMatch, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Score < s.minScore {
			logger.FromContext(ctx).Debug("Skipping low-similarity candidate",
				zap.String("nct_id", candidate.Trial.NCTID),
				zap.Float64("score", candidate.Score),
				zap.Float64("min_score", s.minScore),
			)
			continue
		}
		kept = append(kept, candidate)
	}
	return kept
}

// classifyAll fans candidates out over the worker pool and collects results
// by rank slot. Every candidate yields a result; the classifier degrades to
// NEEDS_REVIEW internally instead of returning an error.
func (s *Service) classifyAll(
	ctx context.Context, profile domain.PatientProfile, candidates []domain.CandidateMatch,
) []domain.MatchResult {
	results := make([]domain.MatchResult, len(candidates))

	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			results[i] = s.classifier.Classify(ctx, profile, candidate)
		}); err != nil {
			// Pool rejected the task (released or overloaded). Classify
			// inline so the candidate still gets a verdict.
			logger.FromContext(ctx).Warn("Classifier pool rejected task, running inline",
				zap.String("nct_id", candidate.Trial.NCTID),
				zap.Error(err),
			)
			results[i] = s.classifier.Classify(ctx, profile, candidate)
			wg.Done()
		}
	}
	wg.Wait()

	return results
}

// Release shuts down the worker pool. The service must not be used after.
func (s *Service) Release() {
	s.pool.Release()
}
