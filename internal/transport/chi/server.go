// Package chi implements the HTTP API: the match endpoint, corpus reload,
// health, and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/meridian-oss/trialmatch/internal/domain"
	healthuc "github.com/meridian-oss/trialmatch/internal/usecase/health"
	matchuc "github.com/meridian-oss/trialmatch/internal/usecase/match"
)

// Error response codes.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeQuotaExceeded     = "quota_exceeded"
	codeEmbeddingError    = "embedding_provider_error"
	codeCorpusUnavailable = "corpus_unavailable"
	codeInternalError     = "internal_error"
	codeReloadFailed      = "corpus_reload_failed"
	codeUnauthorized      = "unauthorized"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// CorpusReloader re-reads the trial corpus and swaps the active snapshot.
type CorpusReloader interface {
	Reload(ctx context.Context) (version string, trials int, err error)
}

// Server exposes the matching pipeline over HTTP.
type Server struct {
	match         *matchuc.Service
	health        *healthuc.Service
	reloader      CorpusReloader
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	match *matchuc.Service,
	health *healthuc.Service,
	reloader CorpusReloader,
	logger *zap.Logger,
) *Server {
	s := &Server{
		match:    match,
		health:   health,
		reloader: reloader,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		quotaExceededHandler,
		sentinelHandler(domain.ErrInvalidProfile, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, codeEmbeddingError),
		sentinelHandler(domain.ErrCorpusUnavailable, http.StatusServiceUnavailable, codeCorpusUnavailable),
	}
	return s
}

// Routes mounts the API on a chi router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/v1/match", s.MatchTrials)
	r.Post("/admin/corpus/reload", s.ReloadCorpus)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// matchRequest mirrors the public match request body.
type matchRequest struct {
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
	Conditions  string `json:"conditions"`
	Medications string `json:"medications"`
	Biomarkers  string `json:"biomarkers"`
}

// matchItem is one classified trial in the response.
type matchItem struct {
	NCTID       string  `json:"nct_id"`
	Title       string  `json:"title"`
	Status      string  `json:"status"`
	Explanation string  `json:"explanation"`
	Score       float64 `json:"score"`
}

// matchResponse is the public match response body.
type matchResponse struct {
	Message string         `json:"message"`
	Matches []matchItem    `json:"matches"`
	Counts  map[string]int `json:"counts,omitempty"`
	Usage   *usageInfo     `json:"usage,omitempty"`
}

type usageInfo struct {
	EmbeddingTokens  int `json:"embedding_tokens"`
	ClassifierTokens int `json:"classifier_tokens"`
}

// MatchTrials handles POST /api/v1/match.
func (s *Server) MatchTrials(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	profile := domain.PatientProfile{
		Age:         req.Age,
		Gender:      req.Gender,
		Conditions:  req.Conditions,
		Medications: req.Medications,
		Biomarkers:  req.Biomarkers,
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.match.Match(ctx, clientIdentity(r), profile)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]matchItem, len(report.Matches))
	for i, m := range report.Matches {
		items[i] = matchItem{
			NCTID:       m.Trial.NCTID,
			Title:       m.Trial.Title,
			Status:      string(m.Status),
			Explanation: m.Explanation,
			Score:       m.Score,
		}
	}

	counts := make(map[string]int, len(report.Counts))
	for status, n := range report.Counts {
		counts[string(status)] = n
	}

	resp := matchResponse{
		Message: "Analysis complete",
		Matches: items,
		Counts:  counts,
	}
	if usage.Used() {
		resp.Usage = &usageInfo{
			EmbeddingTokens:  usage.EmbeddingTokens(),
			ClassifierTokens: usage.ClassifierTokens(),
		}
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

// reloadResponse is the admin corpus reload response body.
type reloadResponse struct {
	Version string `json:"version"`
	Trials  int    `json:"trials"`
}

// ReloadCorpus handles POST /admin/corpus/reload.
func (s *Server) ReloadCorpus(w http.ResponseWriter, r *http.Request) {
	version, trials, err := s.reloader.Reload(r.Context())
	if err != nil {
		s.logger.Error("Corpus reload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeReloadFailed, "corpus reload failed")
		return
	}

	s.logger.Info("Corpus reloaded",
		zap.String("version", version),
		zap.Int("trials", trials),
	)
	writeJSON(w, http.StatusOK, reloadResponse{Version: version, Trials: trials})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// clientIdentity extracts the caller identity for quota accounting: the first
// X-Forwarded-For hop when present, else the remote address.
func clientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.TokenUsage) {
	if usage != nil && usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens()))
		w.Header().Set("X-Classifier-Tokens", strconv.Itoa(usage.ClassifierTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Matches []matchItem `json:"matches"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
		Matches: []matchItem{},
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidProfile,
		domain.ErrQuotaExceeded,
		domain.ErrEmbeddingUnavailable,
		domain.ErrCorpusUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// quotaExceededHandler maps ErrQuotaExceeded to 429 with the denial detail,
// which carries the limit and window for the client.
func quotaExceededHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		return false
	}
	writeError(w, http.StatusTooManyRequests, codeQuotaExceeded, err.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
