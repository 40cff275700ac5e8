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

	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/db"
	dbRedis "github.com/docsift/docsift/internal/db/redis"
	"github.com/docsift/docsift/internal/extract"
	"github.com/docsift/docsift/internal/extract/pdfdoc"
	logpkg "github.com/docsift/docsift/internal/logger"
	"github.com/docsift/docsift/internal/metrics"
	"github.com/docsift/docsift/internal/repository/embcache"
	"github.com/docsift/docsift/internal/session"
	"github.com/docsift/docsift/internal/storage"
	chiTransport "github.com/docsift/docsift/internal/transport/chi"
	"github.com/docsift/docsift/internal/transport/gemini"
	openaiEmb "github.com/docsift/docsift/internal/transport/openai"
	analysisuc "github.com/docsift/docsift/internal/usecase/analysis"
	answeruc "github.com/docsift/docsift/internal/usecase/answer"
	healthuc "github.com/docsift/docsift/internal/usecase/health"
	"github.com/docsift/docsift/internal/version"
)

func main() {
	// .env is optional; real deployments set variables in the environment.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docsift API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("upload_dir", cfg.Storage.UploadDir),
	)

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterCoreMetrics()

	ctx := context.Background()

	// Optional embedding cache
	var store db.Store
	if len(cfg.Cache.Addrs) > 0 {
		redisStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create embedding cache store", zap.Error(err))
		}
		defer redisStore.Close()

		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := redisStore.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Embedding cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
		store = redisStore
	}

	// Embedder chain — composition root. No API key means the service runs
	// in extraction-only mode: uploads succeed with index_built=false.
	var (
		docEmbedder   analysisuc.Embedder
		queryEmbedder answeruc.Embedder
		embHealth     healthuc.EmbeddingChecker
	)
	if cfg.Embedding.APIKey != "" {
		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
		embHealth = base

		// Pass nil interface (not typed nil pointer!) when unconfigured.
		if store != nil {
			cached := embcache.New(
				base, store,
				time.Duration(cfg.Cache.TTLHours)*time.Hour,
				metrics.EmbeddingCacheTotal, logger,
			)
			docEmbedder, queryEmbedder = cached, cached
		} else {
			docEmbedder, queryEmbedder = base, base
		}
		logger.Info("Embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
			zap.Bool("cached", store != nil),
		)
	} else {
		logger.Warn("No embedding API key configured, retrieval disabled")
	}

	// Optional answer synthesis. Without it the retrieval context doubles
	// as the answer, so a broken LLM setup degrades instead of failing.
	var completer answeruc.Completer
	if cfg.LLM.APIKey != "" {
		c, err := gemini.NewCompleter(ctx, gemini.Config{
			APIKey: cfg.LLM.APIKey,
			Model:  cfg.LLM.Model,
		})
		if err != nil {
			logger.Warn("Failed to create LLM completer, falling back to raw context", zap.Error(err))
		} else {
			completer = c
			logger.Info("LLM completer created", zap.String("model", cfg.LLM.Model))
		}
	}

	files, err := storage.New(cfg.Storage.UploadDir)
	if err != nil {
		logger.Fatal("Failed to create upload directory", zap.Error(err))
	}

	extractor := extract.New(logger).WithMinSentenceLen(cfg.Extraction.MinSentenceLen)
	sessions := session.NewHolder()
	maxUpload := cfg.Storage.MaxFileSizeMB * 1024 * 1024

	analysisSvc := analysisuc.New(files, pdfOpener{}, extractor, docEmbedder, sessions, logger).
		WithMaxFileSize(maxUpload)
	answerSvc := answeruc.New(sessions, queryEmbedder, completer, logger).
		WithCompleterTimeout(time.Duration(cfg.LLM.TimeoutSec) * time.Second)

	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(embHealth, cachePinger)

	server := chiTransport.NewServer(analysisSvc, answerSvc, healthSvc, files, maxUpload, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

// pdfOpener adapts the pdfdoc package to the analysis DocumentOpener contract.
type pdfOpener struct{}

func (pdfOpener) Open(path string) (extract.Document, error) {
	return pdfdoc.Open(path)
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

			requestID := chiMiddleware.GetReqID(r.Context())
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
