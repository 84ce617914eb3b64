package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	Database      DatabaseConfig   `json:"database"`
	JWTSecret     string           `json:"jwt_secret"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	LogConfig     logger.LogConfig `json:"log_config"`
	FileStore     FileStoreConfig  `json:"file_store"`
	AI            AIConfig         `json:"ai"`
	Retrieval     RetrievalConfig  `json:"retrieval"`
	Quiz          QuizConfig       `json:"quiz"`
	Indexer       IndexerConfig    `json:"indexer"`
	Health        HealthConfig     `json:"health"`
	Jobs          JobsConfig       `json:"jobs"`
	RateLimit     RateLimitConfig  `json:"rate_limit"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Timeout          int                    `json:"timeout"`
	MaxInputChars    int                    `json:"max_input_chars"`
	Providers        map[string]interface{} `json:"providers"`
	Embed            EmbedConfig            `json:"embed"`
	Generate         GenerateConfig         `json:"generate"`
	EmbedCache       EmbedCacheConfig       `json:"embed_cache"`
	BatchSize        int                    `json:"batch_size"`
	RatePerSecond    float64                `json:"rate_per_second"`
	Burst            int                    `json:"burst"`
	RetryAttempts    int                    `json:"retry_attempts"`
	RetryBaseDelayMs int                    `json:"retry_base_delay_ms"`
}

type EmbedConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type GenerateConfig struct {
	Providers []string `json:"providers"`
	Model     string   `json:"model"`
}

type EmbedCacheConfig struct {
	LruSize       int  `json:"lru_size"`
	LruTTLSeconds int  `json:"lru_ttl_seconds"`
	DBEnabled     bool `json:"db_enabled"`
	MaxAgeDays    int  `json:"max_age_days"`
}

type RetrievalConfig struct {
	EmbeddingDimension int     `json:"embedding_dimension"`
	SearchLambda       float64 `json:"search_lambda"`
	ChatLambda         float64 `json:"chat_lambda"`
	QuizLambda         float64 `json:"quiz_lambda"`
	ContextBudget      int     `json:"context_budget"`
	SearchTimeoutMs    int     `json:"search_timeout_ms"`
	StoreTimeoutMs     int     `json:"store_timeout_ms"`
	MaxChunksLimit     int     `json:"max_chunks_limit"`
}

type QuizConfig struct {
	MaxAttempts        int     `json:"max_attempts"`
	DiversityThreshold float64 `json:"diversity_threshold"`
	BaseTemperature    float64 `json:"base_temperature"`
	TemperatureStep    float64 `json:"temperature_step"`
	MinQuestions       int     `json:"min_questions"`
	ContextSize        int     `json:"context_size"`
	TopicContextSize   int     `json:"topic_context_size"`
}

type IndexerConfig struct {
	ChunkSize           int `json:"chunk_size"`
	ChunkOverlap        int `json:"chunk_overlap"`
	IndexTimeoutSeconds int `json:"index_timeout_seconds"`
	ReindexDelayMs      int `json:"reindex_delay_ms"`
}

type HealthConfig struct {
	TTLSeconds int            `json:"ttl_seconds"`
	Targets    []HealthTarget `json:"targets"`
}

type HealthTarget struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type JobsConfig struct {
	UptimeProbe           string `json:"uptime_probe"`
	EmbeddingCacheCleanup string `json:"embedding_cache_cleanup"`
	ReindexStale          string `json:"reindex_stale"`
}

type RateLimitConfig struct {
	SearchWindowMs int `json:"search_window_ms"`
	ChatWindowMs   int `json:"chat_window_ms"`
	QuizWindowMs   int `json:"quiz_window_ms"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}

	ai := &cfg.AI
	if ai.Timeout <= 0 {
		ai.Timeout = 30
	}
	if ai.MaxInputChars <= 0 {
		ai.MaxInputChars = 20000
	}
	if ai.BatchSize <= 0 {
		ai.BatchSize = 5
	}
	if ai.RatePerSecond <= 0 {
		ai.RatePerSecond = 5
	}
	if ai.Burst <= 0 {
		ai.Burst = ai.BatchSize
	}
	if ai.RetryAttempts <= 0 {
		ai.RetryAttempts = 3
	}
	if ai.RetryBaseDelayMs <= 0 {
		ai.RetryBaseDelayMs = 500
	}
	if ai.EmbedCache.LruTTLSeconds <= 0 {
		ai.EmbedCache.LruTTLSeconds = 3600
	}
	if ai.EmbedCache.MaxAgeDays <= 0 {
		ai.EmbedCache.MaxAgeDays = 30
	}

	r := &cfg.Retrieval
	if r.EmbeddingDimension <= 0 {
		r.EmbeddingDimension = 768
	}
	if r.SearchLambda <= 0 {
		r.SearchLambda = 0.3
	}
	if r.ChatLambda <= 0 {
		r.ChatLambda = 0.5
	}
	if r.QuizLambda <= 0 {
		r.QuizLambda = 0.8
	}
	if r.ContextBudget == 0 {
		r.ContextBudget = 2000
	}
	if r.SearchTimeoutMs <= 0 {
		r.SearchTimeoutMs = 15000
	}
	if r.StoreTimeoutMs <= 0 {
		r.StoreTimeoutMs = 5000
	}
	if r.MaxChunksLimit <= 0 {
		r.MaxChunksLimit = 40
	}

	q := &cfg.Quiz
	if q.MaxAttempts <= 0 {
		q.MaxAttempts = 3
	}
	if q.DiversityThreshold <= 0 {
		q.DiversityThreshold = 0.9
	}
	if q.BaseTemperature <= 0 {
		q.BaseTemperature = 0.8
	}
	if q.TemperatureStep <= 0 {
		q.TemperatureStep = 0.1
	}
	if q.MinQuestions <= 0 {
		q.MinQuestions = 1
	}
	if q.ContextSize <= 0 {
		q.ContextSize = 30
	}
	if q.TopicContextSize <= 0 {
		q.TopicContextSize = 40
	}

	idx := &cfg.Indexer
	if idx.ChunkSize <= 0 {
		idx.ChunkSize = 1000
	}
	if idx.ChunkOverlap <= 0 {
		idx.ChunkOverlap = 200
	}
	if idx.ChunkOverlap >= idx.ChunkSize {
		idx.ChunkOverlap = idx.ChunkSize / 5
	}
	if idx.IndexTimeoutSeconds <= 0 {
		idx.IndexTimeoutSeconds = 300
	}

	if cfg.Health.TTLSeconds <= 0 {
		cfg.Health.TTLSeconds = 30
	}
	if cfg.Jobs.UptimeProbe == "" {
		cfg.Jobs.UptimeProbe = "*/15 * * * *"
	}
	if cfg.Jobs.EmbeddingCacheCleanup == "" {
		cfg.Jobs.EmbeddingCacheCleanup = "0 3 * * *"
	}
	if cfg.Jobs.ReindexStale == "" {
		cfg.Jobs.ReindexStale = "*/10 * * * *"
	}
	if cfg.RateLimit.SearchWindowMs == 0 {
		cfg.RateLimit.SearchWindowMs = 200
	}
	if cfg.RateLimit.ChatWindowMs == 0 {
		cfg.RateLimit.ChatWindowMs = 1000
	}
	if cfg.RateLimit.QuizWindowMs == 0 {
		cfg.RateLimit.QuizWindowMs = 3000
	}
}

func validate(cfg *Config) error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && (cfg.Database.Host == "" || cfg.Database.DBName == "") {
		return fmt.Errorf("database.dsn or database.host/dbname is required")
	}
	if strings.TrimSpace(cfg.AI.Embed.Provider) == "" {
		return fmt.Errorf("ai.embed.provider is required")
	}
	for _, lambda := range []float64{cfg.Retrieval.SearchLambda, cfg.Retrieval.ChatLambda, cfg.Retrieval.QuizLambda} {
		if lambda > 1 {
			return fmt.Errorf("retrieval lambda must be within [0,1]")
		}
	}
	if cfg.Quiz.DiversityThreshold > 1 {
		return fmt.Errorf("quiz.diversity_threshold must be within [0,1]")
	}
	return nil
}
