package app

import (
	"strings"
	"time"

	"github.com/yungbote/coursetree-backend/internal/data/db"
	"github.com/yungbote/coursetree-backend/internal/jobs/orchestrator"
	"github.com/yungbote/coursetree-backend/internal/platform/envutil"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
	"github.com/yungbote/coursetree-backend/internal/temporalx"
)

const (
	CheckpointMemory   = "memory"
	CheckpointPostgres = "postgres"
	CheckpointSQLite   = "sqlite"
	CheckpointRedis    = "redis"
)

type Config struct {
	Port        string
	LogMode     string
	Environment string

	CheckpointBackend string
	CheckpointTTL     time.Duration
	DB                db.Config

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	AuthJWTSecret string
	CORSOrigins   []string

	StyleConfigPath   string
	Language          string
	FanoutConcurrency int
	FanoutRetry       orchestrator.RetryPolicy

	Temporal temporalx.Config
}

func LoadConfig(log *logger.Logger) Config {
	backend := strings.ToLower(envutil.String("CHECKPOINT_BACKEND", CheckpointMemory))
	switch backend {
	case CheckpointMemory, CheckpointPostgres, CheckpointSQLite, CheckpointRedis:
	default:
		log.Warn("Unknown CHECKPOINT_BACKEND; using memory", "value", backend)
		backend = CheckpointMemory
	}

	// Books always live in a relational store; a gorm checkpoint backend picks its driver.
	driver := strings.ToLower(envutil.String("DATABASE_DRIVER", db.DriverSQLite))
	if backend == CheckpointPostgres || backend == CheckpointSQLite {
		driver = backend
	}

	retry := orchestrator.RetryPolicy{
		MaxAttempts: envutil.Int("FANOUT_MAX_ATTEMPTS", 3),
		MinBackoff:  envutil.Millis("FANOUT_MIN_BACKOFF_MS", 500*time.Millisecond),
		MaxBackoff:  envutil.Millis("FANOUT_MAX_BACKOFF_MS", 5*time.Second),
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}

	concurrency := envutil.Int("FANOUT_CONCURRENCY", 10)
	if concurrency < 1 {
		log.Warn("FANOUT_CONCURRENCY must be positive; using 1", "value", concurrency)
		concurrency = 1
	}

	return Config{
		Port:        envutil.String("PORT", "8080"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		Environment: envutil.String("APP_ENV", "development"),

		CheckpointBackend: backend,
		CheckpointTTL:     envutil.Seconds("CHECKPOINT_TTL_SECONDS", 0),
		DB:                db.ConfigFromEnv(driver),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),
		RedisChannel:  envutil.String("REDIS_CHANNEL", ""),

		AuthJWTSecret: envutil.String("AUTH_JWT_SECRET", ""),
		CORSOrigins:   envutil.List("CORS_ALLOWED_ORIGINS", nil),

		StyleConfigPath:   envutil.String("STYLE_CONFIG_PATH", ""),
		Language:          envutil.String("OUTPUT_LANGUAGE", "English"),
		FanoutConcurrency: concurrency,
		FanoutRetry:       retry,

		Temporal: temporalx.LoadConfig(),
	}
}
