package main

import (
	"context"
	"log"
	"time"

	"document-qa-platform/internal/ai"
	"document-qa-platform/internal/config"
	"document-qa-platform/internal/logger"
	"document-qa-platform/internal/queue"
	"document-qa-platform/internal/store"
	"document-qa-platform/services"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

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

	mongoStore := store.NewMongoStore(mongoClient, cfg.DBName)
	blobs, err := store.NewFSBlobStore(cfg.FileStorageDir)
	if err != nil {
		log.Fatal("Failed to prepare blob storage:", err)
	}
	locker := store.NewRedisLocker(rdb)

	embedder := ai.NewService(func(ctx context.Context) (ai.Backend, error) {
		if cfg.GeminiAPIKey != "" {
			return ai.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.EmbedRatePerSecond)
		}
		logger.Warn("GEMINI_API_KEY not set, using local embedding backend")
		return ai.NewLocalBackend(), nil
	}, cfg.EmbedBatchSize)

	chunker := services.NewChunkerService(cfg.ChunkTargetTokens, cfg.ChunkOverlapTokens, cfg.WordsPerToken)
	ingestion := services.NewIngestionService(
		mongoStore, mongoStore, blobs, locker, chunker, embedder,
		cfg.InsertBatchSize, cfg.EmbedBatchSize, cfg.EmbedConcurrency,
	)

	// Periodic sweep for documents stuck in processing after a crash.
	staleAfter := time.Duration(cfg.StaleProcessingAfter) * time.Minute
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.Every(5).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := ingestion.FailStaleProcessing(ctx, staleAfter); err != nil {
			logger.Error("stale processing sweep failed", "error", err)
		}
	})
	scheduler.StartAsync()
	defer scheduler.Stop()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 20,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(ingestion)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.ProcessIngest)

	logger.Info("starting worker",
		"concurrency", 20,
		"queues", "critical(6), default(3), low(1)",
		"redis", redisOpt.Addr)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
