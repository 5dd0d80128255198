package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/meridian-oss/trialmatch/internal/config"
	"github.com/meridian-oss/trialmatch/internal/corpus"
	"github.com/meridian-oss/trialmatch/internal/domain"
	"github.com/meridian-oss/trialmatch/internal/index"
	logpkg "github.com/meridian-oss/trialmatch/internal/logger"
	"github.com/meridian-oss/trialmatch/internal/metrics"
	"github.com/meridian-oss/trialmatch/internal/repository/embcache"
	quotarepo "github.com/meridian-oss/trialmatch/internal/repository/quota"
	chiTransport "github.com/meridian-oss/trialmatch/internal/transport/chi"
	genaiTransport "github.com/meridian-oss/trialmatch/internal/transport/genai"
	openaiTransport "github.com/meridian-oss/trialmatch/internal/transport/openai"
	classifyuc "github.com/meridian-oss/trialmatch/internal/usecase/classify"
	healthuc "github.com/meridian-oss/trialmatch/internal/usecase/health"
	matchuc "github.com/meridian-oss/trialmatch/internal/usecase/match"
	quotauc "github.com/meridian-oss/trialmatch/internal/usecase/quota"
	retrievaluc "github.com/meridian-oss/trialmatch/internal/usecase/retrieval"
	"github.com/meridian-oss/trialmatch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting trialmatch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("corpus_path", cfg.Corpus.Path),
		zap.String("classifier", cfg.Classifier.Provider),
		zap.String("quota_store", cfg.Quota.Store),
	)

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Embedders: the document instruction for corpus backfill, the query
	// instruction for patient queries. Instruction-tuned models want them
	// to differ.
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	// Query chain: base -> cache -> instruction. Instruction stays outermost
	// so the cache key includes it.
	var queryEmbedder domain.Embedder = embcache.New(baseEmbedder, metrics.EmbeddingCacheTotal, logger)
	if cfg.Embedding.QueryInstruction != "" {
		queryEmbedder = domain.NewInstructionEmbedder(queryEmbedder, cfg.Embedding.QueryInstruction)
	}
	var docEmbedder domain.BatchEmbedder = baseEmbedder
	if cfg.Embedding.DocInstruction != "" {
		docEmbedder = domain.NewInstructionEmbedder(baseEmbedder, cfg.Embedding.DocInstruction)
	}

	// Load the trial corpus and publish the first snapshot
	ctx := context.Background()
	provider := corpus.NewProvider()
	loader := corpus.NewLoader(cfg.Corpus.Path, docEmbedder, logger)

	snap, err := loader.Load(ctx)
	if err != nil {
		logger.Fatal("Failed to load trial corpus", zap.Error(err))
	}
	provider.Swap(snap)
	metrics.CorpusTrials.Set(float64(snap.Len()))
	logger.Info("Trial corpus loaded",
		zap.String("version", snap.Version()),
		zap.Int("trials", snap.Len()),
		zap.Int("dimensions", snap.Dimension()),
	)

	// Retrieval over the in-memory index
	idx := index.New(provider)
	retriever := retrievaluc.New(queryEmbedder, idx, cfg.Match.TopK)

	// Classifier backend selection
	classifier, err := buildClassifier(ctx, cfg.Classifier, logger)
	if err != nil {
		logger.Fatal("Failed to create classifier", zap.Error(err))
	}

	// Quota store selection
	var quotaStore quotauc.Store
	var storePinger healthuc.StorePinger
	switch cfg.Quota.Store {
	case "redis":
		redisStore, err := quotarepo.NewRedisStore(quotarepo.RedisConfig{
			Addrs:    cfg.Quota.Addrs,
			Password: cfg.Quota.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create quota store", zap.Error(err))
		}
		defer redisStore.Close()
		if err := redisStore.WaitForReady(ctx, 10*time.Second); err != nil {
			logger.Fatal("Quota store not ready", zap.Error(err))
		}
		quotaStore = redisStore
		storePinger = redisStore
	default:
		quotaStore = quotarepo.NewMemoryStore()
	}

	governor := quotauc.New(quotaStore, cfg.Quota.Limit, cfg.Quota.Window())

	matchSvc, err := matchuc.New(governor, retriever, classifier, cfg.Classifier.Concurrency)
	if err != nil {
		logger.Fatal("Failed to create match service", zap.Error(err))
	}
	matchSvc.WithMinScore(*cfg.Match.MinScore)
	defer matchSvc.Release()

	healthSvc := healthuc.New(provider, baseEmbedder, storePinger)

	server := chiTransport.NewServer(
		matchSvc,
		healthSvc,
		&corpusReloader{loader: loader, provider: provider},
		logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildClassifier selects the eligibility classifier backend.
func buildClassifier(
	ctx context.Context, cfg config.ClassifierConfig, logger *zap.Logger,
) (matchuc.Classifier, error) {
	switch cfg.Provider {
	case "demo":
		logger.Warn("Running with the demo classifier, every trial returns NEEDS_REVIEW")
		return classifyuc.NewDemo(), nil
	case "openai":
		backend := openaiTransport.NewClassifier(&openaiTransport.ClassifierConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Provider:    cfg.Provider,
			Logger:      logger,
		})
		return classifyuc.New(backend).
			WithTimeout(time.Duration(cfg.TimeoutSec) * time.Second), nil
	case "gemini":
		backend, err := genaiTransport.NewClassifier(ctx, genaiTransport.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini backend: %w", err)
		}
		return classifyuc.New(backend).
			WithTimeout(time.Duration(cfg.TimeoutSec) * time.Second), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}

// corpusReloader re-reads the corpus file and atomically swaps the snapshot.
type corpusReloader struct {
	loader   *corpus.Loader
	provider *corpus.Provider
}

func (r *corpusReloader) Reload(ctx context.Context) (string, int, error) {
	snap, err := r.loader.Load(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("reload corpus: %w", err)
	}
	r.provider.Swap(snap)
	metrics.CorpusTrials.Set(float64(snap.Len()))
	return snap.Version(), snap.Len(), nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
