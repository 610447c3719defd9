package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"document-qa-platform/internal/ai"
	"document-qa-platform/internal/config"
	"document-qa-platform/internal/llm"
	"document-qa-platform/internal/logger"
	"document-qa-platform/internal/store"
	"document-qa-platform/internal/telemetry"
	"document-qa-platform/middleware"
	"document-qa-platform/routes"
	"document-qa-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.InitTracer("document-qa-platform", cfg.OTLPEndpoint, cfg.TraceSampleRate)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	// Stores
	mongoStore := store.NewMongoStore(mongoClient, cfg.DBName)
	knowledgeStore := store.NewMongoKnowledgeStore(mongoClient, cfg.DBName)
	blobs, err := store.NewFSBlobStore(cfg.FileStorageDir)
	if err != nil {
		log.Fatal("Failed to prepare blob storage:", err)
	}
	locker := store.NewRedisLocker(rdb)

	// Embedding backend: Gemini when a key is configured, otherwise the
	// deterministic local backend.
	embedder := ai.NewService(func(ctx context.Context) (ai.Backend, error) {
		if cfg.GeminiAPIKey != "" {
			return ai.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.EmbedRatePerSecond)
		}
		logger.Warn("GEMINI_API_KEY not set, using local embedding backend")
		return ai.NewLocalBackend(), nil
	}, cfg.EmbedBatchSize)

	// Services
	chunker := services.NewChunkerService(cfg.ChunkTargetTokens, cfg.ChunkOverlapTokens, cfg.WordsPerToken)
	ingestion := services.NewIngestionService(
		mongoStore, mongoStore, blobs, locker, chunker, embedder,
		cfg.InsertBatchSize, cfg.EmbedBatchSize, cfg.EmbedConcurrency,
	)
	retriever := services.NewRetrieverService(embedder, services.ScoreWeights{
		ExactKeyword:   cfg.ScoreExactKeyword,
		PartialKeyword: cfg.ScorePartialKeyword,
		ContentTerm:    cfg.ScoreContentTerm,
		QuestionTerm:   cfg.ScoreQuestionTerm,
	})
	builder := services.NewContextBuilder(cfg.ContextMaxChars, cfg.ContextMinRemainder)
	llmRouter := llm.NewRouter(llm.Config{
		GroqAPIKey:       cfg.GroqAPIKey,
		GroqModel:        cfg.GroqModel,
		OpenRouterAPIKey: cfg.OpenRouterAPIKey,
		OpenRouterModel:  cfg.OpenRouterModel,
		OllamaBaseURL:    cfg.OllamaBaseURL,
		OllamaModel:      cfg.OllamaModel,
		CloudTimeout:     time.Duration(cfg.CloudTimeout) * time.Second,
		LocalTimeout:     time.Duration(cfg.LocalTimeout) * time.Second,
	})
	chat := services.NewChatService(mongoStore, mongoStore, retriever, builder, llmRouter)
	knowledge := services.NewKnowledgeService(knowledgeStore, mongoStore, mongoStore, embedder)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	if cfg.OTLPEndpoint != "" {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	authMiddleware := middleware.NewAuthMiddleware(cfg.AccessSecret)

	routes.SetupDocumentRoutes(router, cfg, mongoStore, blobs, ingestion, queueClient, authMiddleware)
	routes.SetupChatRoutes(router, chat, authMiddleware)
	routes.SetupProviderRoutes(router, cfg, llmRouter, authMiddleware)
	routes.SetupAssistantRoutes(router, knowledge, authMiddleware)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
