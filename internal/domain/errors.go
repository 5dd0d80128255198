package domain

import "errors"

var (
	// ErrInvalidProfile signals a malformed patient profile.
	ErrInvalidProfile = errors.New("invalid patient profile")
	// ErrQuotaExceeded signals a per-identity request quota denial.
	ErrQuotaExceeded = errors.New("request quota exceeded")
	// ErrEmbeddingUnavailable signals an embedding backend failure.
	// Aborts the whole request: without a query vector there is nothing to retrieve.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")
	// ErrClassifierUnavailable signals a classifier backend failure.
	// Recovered per candidate as a NEEDS_REVIEW verdict, never request-level.
	ErrClassifierUnavailable = errors.New("classifier backend unavailable")
	// ErrClassifierRateLimited signals a provider-side rate limit on a classifier call.
	ErrClassifierRateLimited = errors.New("classifier provider rate limited")
	// ErrVectorDimMismatch signals a corpus vector whose dimension differs from the
	// snapshot embedding dimension. Rejected at ingestion, not at query time.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrCorpusUnavailable signals that no corpus snapshot has been loaded.
	ErrCorpusUnavailable = errors.New("trial corpus unavailable")
)
