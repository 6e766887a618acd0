package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogOutput string `envconfig:"LOG_OUTPUT" default:"stdout"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"agentkb-sources"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	RedisURL          string        `envconfig:"REDIS_URL"`
	EmbeddingCacheTTL time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"24h"`

	// Provider settings. Credentials are per agent; only the endpoint and
	// models are global.
	OpenAIBaseURL          string        `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel         string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions    int           `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	DefaultGenerationModel string        `envconfig:"DEFAULT_GENERATION_MODEL" default:"gpt-4o-mini"`
	ProviderTimeout        time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
	ProviderMaxAttempts    int           `envconfig:"PROVIDER_MAX_ATTEMPTS" default:"3"`

	SearchDefaultThreshold float64 `envconfig:"SEARCH_DEFAULT_THRESHOLD" default:"0.3"`
	SearchMaxResults       int     `envconfig:"SEARCH_MAX_RESULTS" default:"100"`

	WorkerEnabled      bool          `envconfig:"WORKER_ENABLED" default:"true"`
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Bootstrap: create initial organization and API key on startup
	InitOrgName string `envconfig:"INIT_ORG_NAME"`
	InitAPIKey  string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("AGENTKB", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.SearchDefaultThreshold < 0 || cfg.SearchDefaultThreshold > 1 {
		return nil, fmt.Errorf("SEARCH_DEFAULT_THRESHOLD must be between 0 and 1, got %v", cfg.SearchDefaultThreshold)
	}
	if cfg.SearchMaxResults <= 0 {
		return nil, fmt.Errorf("SEARCH_MAX_RESULTS must be positive, got %d", cfg.SearchMaxResults)
	}

	return &cfg, nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}
