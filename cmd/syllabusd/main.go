package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kailas-cloud/syllabus/internal/config"
	"github.com/kailas-cloud/syllabus/internal/db"
	dbRedis "github.com/kailas-cloud/syllabus/internal/db/redis"
	"github.com/kailas-cloud/syllabus/internal/domain"
	logpkg "github.com/kailas-cloud/syllabus/internal/logger"
	"github.com/kailas-cloud/syllabus/internal/metrics"
	catalogrepo "github.com/kailas-cloud/syllabus/internal/repository/catalog"
	chunkrepo "github.com/kailas-cloud/syllabus/internal/repository/chunk"
	conversationrepo "github.com/kailas-cloud/syllabus/internal/repository/conversation"
	"github.com/kailas-cloud/syllabus/internal/repository/embcache"
	"github.com/kailas-cloud/syllabus/internal/repository/keyspace"
	searchrepo "github.com/kailas-cloud/syllabus/internal/repository/search"
	"github.com/kailas-cloud/syllabus/internal/repository/searchlog"
	chiTransport "github.com/kailas-cloud/syllabus/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/syllabus/internal/transport/openai"
	answeruc "github.com/kailas-cloud/syllabus/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/syllabus/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/syllabus/internal/usecase/health"
	searchuc "github.com/kailas-cloud/syllabus/internal/usecase/search"
	"github.com/kailas-cloud/syllabus/internal/version"
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

	logger.Info("Starting syllabus API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("credential_mode", cfg.Database.CredentialMode),
	)
	if cfg.Database.Restricted() {
		logger.Warn("Running with restricted database credentials: search log and conversation history are disabled")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
		ReadOnly: cfg.Database.Restricted(),
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, config.Sec(cfg.Database.ReadinessTimeout)); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterHTTPMetrics()

	keys := keyspace.New(cfg.Database.KeyPrefix)

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    config.Sec(cfg.Embedding.TimeoutSec),
		Logger:     logger,
	})
	embedder := buildEmbedder(&cfg, base, store, keys, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Int("max_retries", *cfg.Embedding.MaxRetries),
		zap.Bool("cache", !cfg.Embedding.DisableCache),
	)

	chunks := chunkrepo.New(store, keys, cfg.Embedding.Dimensions)
	ready, err := chunks.IndexReady(ctx)
	if err != nil {
		logger.Fatal("Failed to check chunk index", zap.Error(err))
	}
	if !ready {
		logger.Warn("Chunk index does not exist yet; run syllabusctl index create",
			zap.String("index", keys.ChunkIndex()))
	}

	var searchLog searchuc.SearchLog
	if cfg.SearchLog.Enabled && !cfg.Database.Restricted() {
		sink, err := searchlog.New(store, keys, searchlog.Config{
			Workers: cfg.SearchLog.Workers,
			MaxLen:  cfg.SearchLog.MaxLen,
			Timeout: config.Ms(cfg.SearchLog.TimeoutMs),
		}, metrics.SearchLogFailuresTotal, logger)
		if err != nil {
			logger.Fatal("Failed to create search log sink", zap.Error(err))
		}
		defer sink.Close()
		searchLog = sink
	}

	searchSvc := searchuc.New(
		searchrepo.New(store, keys),
		catalogrepo.New(store, keys),
		embedder,
		searchLog,
		searchuc.Config{
			DensePool:     cfg.Search.DensePool,
			KeyPool:       cfg.Search.KeyPool,
			EmbedTimeout:  config.Sec(cfg.Search.EmbedTimeoutSec),
			SearchTimeout: config.Sec(cfg.Search.TimeoutSec),
			Weights:       cfg.Search.Weights.Fusion(),
		},
	)

	healthDeps := healthuc.Deps{DB: store, Index: chunks, Embedding: base}

	// Pass nil interfaces, never typed nil pointers.
	var answerer chiTransport.Answerer
	if cfg.Chat.Enabled() {
		completer := openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
			Config: openaiTransport.Config{
				APIKey:  cfg.Chat.APIKey,
				BaseURL: cfg.Chat.BaseURL,
				Model:   cfg.Chat.Model,
				Timeout: config.Sec(cfg.Chat.TimeoutSec),
				Logger:  logger,
			},
			Temperature: cfg.Chat.Temperature,
			MaxTokens:   cfg.Chat.MaxTokens,
		})
		var history answeruc.Conversations
		if !cfg.Database.Restricted() {
			history = conversationrepo.New(store, keys,
				config.Sec(cfg.Conversation.TTLSec), cfg.Conversation.MaxTurns)
		}
		answerer = answeruc.New(searchSvc, completer, history)
		healthDeps.Chat = completer
		logger.Info("Chat enabled", zap.String("model", cfg.Chat.Model))
	}

	server := chiTransport.NewServer(searchSvc, answerer, healthuc.New(healthDeps, 0), cfg.Search.FallbackAllowed())
	router := chiTransport.NewRouter(server, logger, cfg.Auth.APIKeys)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       config.Sec(cfg.HTTP.ReadTimeoutSec),
		ReadHeaderTimeout: config.Sec(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout:      config.Sec(cfg.HTTP.WriteTimeoutSec),
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Sec(cfg.HTTP.ShutdownSec))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Retrying -> Cached -> Instrumented.
func buildEmbedder(
	cfg *config.Config,
	base domain.Embedder,
	store db.Store,
	keys keyspace.Keyspace,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = embeddinguc.NewRetryingEmbedder(base, cfg.Embedding.Provider, embeddinguc.RetryPolicy{
		MaxRetries: *cfg.Embedding.MaxRetries,
		BaseDelay:  config.Ms(cfg.Embedding.BaseDelayMs),
	}, logger)

	if !cfg.Embedding.DisableCache {
		embedder = embcache.New(embedder, store, keys, embcache.Options{
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			TTL:        config.Sec(cfg.Embedding.CacheTTLSec),
		}, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.CostPerMillionTokens, logger,
	)
}
