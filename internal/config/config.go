package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI       string
	DBName         string
	Port           string
	GinMode        string
	CORSOrigins    []string
	MaxFileSize    int64
	AllowedTypes   []string
	FileStorageDir string

	// Documents above this byte size are queued for the worker instead of
	// being processed in-request.
	SyncProcessingLimit int64

	// Chunking
	ChunkTargetTokens  int
	ChunkOverlapTokens int
	WordsPerToken      float64

	// Embedding
	GeminiAPIKey       string
	EmbeddingModel     string
	EmbedBatchSize     int
	EmbedConcurrency   int
	EmbedRatePerSecond int

	// Ingestion
	InsertBatchSize      int
	StaleProcessingAfter int // minutes

	// Retrieval and context assembly
	ContextMaxChars     int
	ContextMinRemainder int
	ScoreExactKeyword   float64
	ScorePartialKeyword float64
	ScoreContentTerm    float64
	ScoreQuestionTerm   float64

	// Providers
	GroqAPIKey       string
	GroqModel        string
	OpenRouterAPIKey string
	OpenRouterModel  string
	OllamaBaseURL    string
	OllamaModel      string
	CloudTimeout     int // seconds
	LocalTimeout     int // seconds

	// Redis
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Auth
	AccessSecret string

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int // seconds

	// Telemetry
	OTLPEndpoint    string
	TraceSampleRate float64
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017/document_qa"),
		DBName:         getEnv("DB_NAME", "document_qa"),
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		CORSOrigins:    strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		AllowedTypes:   strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf,text/plain,text/markdown,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"), ","),
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),

		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 20971520), // 20MB

		ChunkTargetTokens:  getEnvInt("CHUNK_TARGET_TOKENS", 500),
		ChunkOverlapTokens: getEnvInt("CHUNK_OVERLAP_TOKENS", 50),
		WordsPerToken:      getEnvFloat64("WORDS_PER_TOKEN", 0.75),

		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		EmbedBatchSize:     getEnvInt("EMBED_BATCH_SIZE", 32),
		EmbedConcurrency:   getEnvInt("EMBED_CONCURRENCY", 4),
		EmbedRatePerSecond: getEnvInt("EMBED_RATE_PER_SECOND", 10),

		InsertBatchSize:      getEnvInt("INSERT_BATCH_SIZE", 50),
		StaleProcessingAfter: getEnvInt("STALE_PROCESSING_AFTER", 30),

		ContextMaxChars:     getEnvInt("CONTEXT_MAX_CHARS", 8000),
		ContextMinRemainder: getEnvInt("CONTEXT_MIN_REMAINDER", 500),
		ScoreExactKeyword:   getEnvFloat64("SCORE_EXACT_KEYWORD", 3),
		ScorePartialKeyword: getEnvFloat64("SCORE_PARTIAL_KEYWORD", 2),
		ScoreContentTerm:    getEnvFloat64("SCORE_CONTENT_TERM", 1),
		ScoreQuestionTerm:   getEnvFloat64("SCORE_QUESTION_TERM", 0.5),

		GroqAPIKey:       getEnv("GROQ_API_KEY", ""),
		GroqModel:        getEnv("GROQ_MODEL", "llama-3.1-8b-instant"),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:  getEnv("OPENROUTER_MODEL", "meta-llama/llama-3.1-8b-instruct"),
		OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "llama3.1:8b"),
		CloudTimeout:     getEnvInt("CLOUD_TIMEOUT_SECONDS", 15),
		LocalTimeout:     getEnvInt("LOCAL_TIMEOUT_SECONDS", 60),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AccessSecret: getEnv("ACCESS_SECRET", ""),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTLPEndpoint:    getEnv("OTLP_ENDPOINT", ""),
		TraceSampleRate: getEnvFloat64("TRACE_SAMPLE_RATE", 0.1),
	}

	// Validate required fields
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("ACCESS_SECRET is required - set it in .env file")
	}

	if cfg.ChunkOverlapTokens >= cfg.ChunkTargetTokens {
		return nil, fmt.Errorf("CHUNK_OVERLAP_TOKENS must be smaller than CHUNK_TARGET_TOKENS")
	}

	if cfg.ContextMinRemainder > cfg.ContextMaxChars {
		return nil, fmt.Errorf("CONTEXT_MIN_REMAINDER must not exceed CONTEXT_MAX_CHARS")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
