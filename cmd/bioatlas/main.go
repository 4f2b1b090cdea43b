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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/spacehacks/bioatlas/internal/config"
	"github.com/spacehacks/bioatlas/internal/domain"
	logpkg "github.com/spacehacks/bioatlas/internal/logger"
	"github.com/spacehacks/bioatlas/internal/metrics"
	"github.com/spacehacks/bioatlas/internal/repository/embcache"
	chiTransport "github.com/spacehacks/bioatlas/internal/transport/chi"
	"github.com/spacehacks/bioatlas/internal/transport/elastic"
	openaiTransport "github.com/spacehacks/bioatlas/internal/transport/openai"
	answeruc "github.com/spacehacks/bioatlas/internal/usecase/answer"
	healthuc "github.com/spacehacks/bioatlas/internal/usecase/health"
	"github.com/spacehacks/bioatlas/internal/version"
)

func main() {
	// .env first, then config by ENV
	_ = godotenv.Load()
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

	logger.Info("Starting bioatlas API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index", cfg.Elastic.Index),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("llm_model", cfg.LLM.Model),
	)

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Document store client — retrieval and (by default) query embedding
	store, err := elastic.NewClient(&elastic.Config{
		URL:                cfg.Elastic.URL,
		APIKey:             cfg.Elastic.APIKey,
		Username:           cfg.Elastic.Username,
		Password:           cfg.Elastic.Password,
		Index:              cfg.Elastic.Index,
		ModelID:            cfg.Elastic.ModelID,
		Timeout:            time.Duration(cfg.Elastic.TimeoutSec) * time.Second,
		InsecureSkipVerify: cfg.Elastic.InsecureSkipVerify,
		Logger:             logger,
	})
	if err != nil {
		logger.Fatal("Failed to create document store client", zap.Error(err))
	}

	embedder, cacheStore, err := buildEmbedder(cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	if cacheStore != nil {
		defer cacheStore.Close()
	}

	generator, err := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Failed to create generator", zap.Error(err))
	}

	answerSvc := answeruc.New(embedder, store, generator, logger).
		WithOptions(answeruc.Options{
			TopK:             cfg.Retrieval.TopK,
			NumCandidates:    cfg.Retrieval.NumCandidates,
			ContextBudget:    cfg.Retrieval.ContextBudget,
			PassageCharLimit: cfg.Retrieval.PassageCharLimit,
			SnippetCharLimit: cfg.Retrieval.SnippetCharLimit,
		}).
		WithPersonas(personasFromConfig(cfg), cfg.Personas.Default)

	healthSvc := healthuc.New(store, generator)

	server := chiTransport.NewServer(answerSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

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

// buildEmbedder assembles the query embedder chain: provider -> cache -> instruction.
// The cache store is returned for shutdown; nil when caching is disabled.
func buildEmbedder(cfg config.Config, store *elastic.Client, logger *zap.Logger) (domain.Embedder, *embcache.Store, error) {
	var base domain.Embedder
	var model string

	switch cfg.Embedding.Provider {
	case "openai":
		emb, err := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
			APIKey:     cfg.Embedding.OpenAI.APIKey,
			BaseURL:    cfg.Embedding.OpenAI.BaseURL,
			Model:      cfg.Embedding.OpenAI.Model,
			Dimensions: cfg.Embedding.OpenAI.Dimensions,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, err
		}
		base = emb
		model = cfg.Embedding.OpenAI.Model
	default:
		// The store's own inference endpoint embeds queries in the same
		// vector space the corpus was indexed with.
		base = store
		model = cfg.Elastic.ModelID
	}

	embedder := base
	var cacheStore *embcache.Store
	if len(cfg.Cache.Addrs) > 0 {
		var err error
		cacheStore, err = embcache.NewStore(embcache.StoreConfig{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
			TTL:      time.Duration(cfg.Cache.TTLSec) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		embedder = embcache.New(base, cacheStore, cfg.Cache.KeyPrefix, model, metrics.EmbeddingCacheTotal, logger)
		logger.Info("Query embedding cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Instruction prefix (outermost — cache key stays instruction-free,
	// matching how the corpus side was embedded at ingest).
	if cfg.Embedding.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.Embedding.QueryInstruction)
	}

	return embedder, cacheStore, nil
}

// personasFromConfig merges config profiles over the built-in personas.
func personasFromConfig(cfg config.Config) map[string]domain.Persona {
	personas := domain.DefaultPersonas()
	for name, p := range cfg.Personas.Profiles {
		persona := domain.Persona{
			Name:         name,
			SystemPrompt: p.SystemPrompt,
			Temperature:  p.Temperature,
			MaxTokens:    p.MaxTokens,
		}
		if persona.SystemPrompt == "" {
			if builtin, ok := personas[name]; ok {
				persona.SystemPrompt = builtin.SystemPrompt
			}
		}
		personas[name] = persona
	}
	return personas
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
