package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docqa/internal/config"
	"docqa/internal/embedding"
	"docqa/internal/http"
	"docqa/internal/ingest"
	"docqa/internal/llm"
	"docqa/internal/rag"
	"docqa/internal/service"
	"docqa/internal/storage"
	"docqa/internal/telemetry"
	"docqa/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers questions over indexed documents and video transcripts.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: docqa API
//   description: |
//     Retrieval-augmented question answering over pre-chunked documents and videos.
//     Answers cite their sources and carry video timestamps and document images.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json
// securityDefinitions:
//   bearer:
//     type: apiKey
//     name: Authorization
//     in: header

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTelServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("Failed to flush traces", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	// Conversations always live in SQLite, whichever row store backs the chunks.
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	var pg *sql.DB
	if cfg.VectorBackend == config.VectorBackendPgVector || cfg.StoreBackend == config.StoreBackendPostgres {
		pg, err = storage.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open postgres: %v", err)
		}
		defer func() {
			_ = pg.Close()
		}()
		slog.Info("Postgres connected")
	}

	encoder, closeEncoder, err := buildEncoder(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create embedding encoder: %v", err)
	}
	defer closeEncoder()
	if err := embedding.CheckDimension(ctx, encoder, cfg.EmbeddingDimension); err != nil {
		log.Fatalf("Embedding encoder failed validation: %v", err)
	}
	slog.Info("Embedding encoder validated", "backend", cfg.EmbeddingBackend, "dimension", cfg.EmbeddingDimension)

	vectorStore, collection, closeIndex, err := buildVectorStore(ctx, cfg, pg)
	if err != nil {
		log.Fatalf("Failed to prepare vector index: %v", err)
	}
	defer closeIndex()
	slog.Info("Vector index ready", "backend", cfg.VectorBackend, "collection", collection, "dimension", cfg.EmbeddingDimension)

	var rows storage.ChunkStore
	var rowsDB *sql.DB
	if cfg.StoreBackend == config.StoreBackendPostgres {
		if err := storage.MigratePostgres(ctx, pg); err != nil {
			log.Fatalf("Failed to run postgres migrations: %v", err)
		}
		rows = storage.NewPostgresChunkRepo(pg)
		rowsDB = pg
	} else {
		rows = storage.NewChunkRepo(db)
		rowsDB = db
	}

	completer, closeLLM, err := buildCompleter(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}
	defer closeLLM()
	guarded := llm.NewGuard(completer, llm.GuardConfig{
		Name:          cfg.LLMProvider,
		RatePerMinute: cfg.LLMRatePerMinute,
		OnStateChange: func(from, to string) {
			slog.Warn("LLM circuit breaker state changed", "from", from, "to", to)
			metrics.BreakerStateChange(from, to)
		},
	})

	retriever := rag.NewRetriever(encoder, vectorStore, rows, rag.RetrieverConfig{
		Collection:         collection,
		EmbeddingTimeout:   cfg.EmbeddingTimeout,
		IndexTimeout:       cfg.IndexQueryTimeout,
		IndexRetries:       cfg.IndexQueryRetries,
		RowFetchTimeout:    cfg.RowFetchTimeout,
		OnRowStoreDegraded: metrics.RowStoreDegraded,
	})
	generator := rag.NewGenerator(guarded, rag.GeneratorConfig{
		MaxContextLength: cfg.MaxContextLength,
		Timeout:          cfg.LLMTimeout,
		Temperature:      cfg.LLMTemperature,
	})
	chatService := service.NewChatService(retriever, generator, metrics, service.ChatConfig{
		DefaultTopK:         cfg.DefaultTopK,
		MaxTopK:             cfg.MaxTopK,
		RecommendationLimit: cfg.RecommendationLimit,
	})
	conversationService := service.NewConversationService(
		storage.NewSessionRepo(db),
		storage.NewMessageRepo(db),
		chatService,
		cfg.HistoryLimit,
	)
	pipeline := ingest.NewPipeline(encoder, vectorStore, rows, ingest.Config{
		Collection:  collection,
		ImagePrefix: cfg.ImagePathPrefix,
	})
	slog.Info("RAG pipeline initialized", "llm_provider", cfg.LLMProvider, "default_top_k", cfg.DefaultTopK, "max_top_k", cfg.MaxTopK)

	router := http.NewRouter(&http.Deps{
		ChatService:         chatService,
		ConversationService: conversationService,
		Indexer:             pipeline,
		VectorStore:         vectorStore,
		DB:                  rowsDB,
		CollectionName:      collection,
		Metrics:             metrics,
		CORSOrigins:         cfg.CORSOrigins,
		AuthJWTSecret:       cfg.AuthJWTSecret,
	})
	if cfg.AuthJWTSecret == "" {
		slog.Warn("AUTH_JWT_SECRET is not set; conversation endpoints are disabled")
	}

	addr := ":" + cfg.APIPort
	server := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", addr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}
}

// buildEncoder returns the configured encoder, wrapped in the redis query cache when REDIS_URL is set.
func buildEncoder(ctx context.Context, cfg *config.Config) (embedding.Encoder, func(), error) {
	var (
		encoder embedding.Encoder
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.EmbeddingBackend {
	case config.EmbeddingBackendHugot:
		hugotEncoder, err := embedding.NewHugotEncoder(cfg.EmbeddingModelName, cfg.EmbeddingModelDir, cfg.EmbeddingDimension)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() { _ = hugotEncoder.Close() })
		encoder = hugotEncoder
	default:
		encoder = embedding.NewHTTPEncoder(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDimension)
	}

	if cfg.RedisURL == "" {
		return encoder, closeAll, nil
	}
	cache, err := embedding.NewRedisCache(cfg.RedisURL, cfg.EmbeddingCacheTTL)
	if err != nil {
		closeAll()
		return nil, func() {}, err
	}
	closers = append(closers, func() { _ = cache.Close() })
	if err := cache.Ping(ctx); err != nil {
		// The cache is an optimization; misses fall through to the encoder.
		slog.Warn("Redis unreachable at startup; query embeddings will not be cached until it recovers", "error", err)
	}
	slog.Info("Query embedding cache enabled", "ttl", cfg.EmbeddingCacheTTL)
	return embedding.NewCachedEncoder(encoder, cache, cfg.EmbeddingModelName), closeAll, nil
}

// buildVectorStore opens the configured index and ensures the collection exists with the right dimension.
func buildVectorStore(ctx context.Context, cfg *config.Config, pg *sql.DB) (vectorstore.VectorStore, string, func(), error) {
	if cfg.VectorBackend == config.VectorBackendPgVector {
		store := vectorstore.NewPgVectorStore(pg)
		if err := store.EnsureSchema(ctx, vectorstore.PgVectorTable, cfg.EmbeddingDimension); err != nil {
			return nil, "", func() {}, err
		}
		return store, vectorstore.PgVectorTable, func() {}, nil
	}

	store, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		return nil, "", func() {}, err
	}
	closeStore := func() { _ = store.Close() }
	if err := store.EnsureCollection(ctx, cfg.QdrantCollection, cfg.EmbeddingDimension); err != nil {
		closeStore()
		return nil, "", func() {}, err
	}
	return store, cfg.QdrantCollection, closeStore, nil
}

// buildCompleter creates the LLM client for the configured provider.
func buildCompleter(ctx context.Context, cfg *config.Config) (llm.Completer, func(), error) {
	if cfg.LLMProvider == config.LLMProviderGemini {
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, func() {}, err
		}
		slog.Info("Using Gemini LLM", "model", cfg.GeminiModel)
		return client, func() { _ = client.Close() }, nil
	}
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	return llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName), func() {}, nil
}
