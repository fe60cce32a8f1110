package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Referral     ReferralConfig
	Storage      StorageConfig
	Zones        ZonesConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	UserCacheTTLSec int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	BootstrapEmail        string
	BootstrapPassword     string
}

// NotificationConfig tunes outbox delivery.
type NotificationConfig struct {
	PollIntervalMillis int
	BatchSize          int
	MaxAttempts        int
	BaseBackoffMillis  int
	ChannelPrefix      string
}

// ReferralConfig parameterizes the referral reward.
type ReferralConfig struct {
	Threshold int
	Reward    int64
}

// StorageConfig points at the object store that holds report media.
type StorageConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	PresignTTLSec int
	UsePathStyle  bool
}

// ZonesConfig points at an optional engineer zone seed file.
type ZonesConfig struct {
	File string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	reward, err := strconv.ParseInt(getEnv("REFERRAL_REWARD", "10"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid REFERRAL_REWARD: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "report-resolve-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:            os.Getenv("REDIS_ADDR"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			DB:              redisDB,
			UserCacheTTLSec: getEnvAsInt("REDIS_USER_CACHE_TTL_SECONDS", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapEmail:        os.Getenv("AUTH_BOOTSTRAP_DISPATCHER_EMAIL"),
			BootstrapPassword:     os.Getenv("AUTH_BOOTSTRAP_DISPATCHER_PASSWORD"),
		},
		Notification: NotificationConfig{
			PollIntervalMillis: getEnvAsInt("NOTIFY_POLL_INTERVAL_MS", 1000),
			BatchSize:          getEnvAsInt("NOTIFY_BATCH_SIZE", 50),
			MaxAttempts:        getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 8),
			BaseBackoffMillis:  getEnvAsInt("NOTIFY_BASE_BACKOFF_MS", 500),
			ChannelPrefix:      getEnv("NOTIFY_CHANNEL_PREFIX", "notifications"),
		},
		Referral: ReferralConfig{
			Threshold: getEnvAsInt("REFERRAL_THRESHOLD", 5),
			Reward:    reward,
		},
		Storage: StorageConfig{
			Bucket:        os.Getenv("STORAGE_BUCKET"),
			Region:        getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:      os.Getenv("STORAGE_ENDPOINT"),
			AccessKey:     os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey:     os.Getenv("STORAGE_SECRET_KEY"),
			PublicBaseURL: os.Getenv("STORAGE_PUBLIC_BASE_URL"),
			PresignTTLSec: getEnvAsInt("STORAGE_PRESIGN_TTL_SECONDS", 300),
			UsePathStyle:  getEnvAsBool("STORAGE_USE_PATH_STYLE", false),
		},
		Zones: ZonesConfig{
			File: os.Getenv("ZONES_FILE"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// UserCacheTTL returns how long user lookups stay cached.
func (r RedisConfig) UserCacheTTL() time.Duration {
	if r.UserCacheTTLSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(r.UserCacheTTLSec) * time.Second
}

// PollInterval returns the outbox polling period.
func (n NotificationConfig) PollInterval() time.Duration {
	if n.PollIntervalMillis <= 0 {
		return time.Second
	}
	return time.Duration(n.PollIntervalMillis) * time.Millisecond
}

// BaseBackoff returns the delay before the first redelivery.
func (n NotificationConfig) BaseBackoff() time.Duration {
	if n.BaseBackoffMillis <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(n.BaseBackoffMillis) * time.Millisecond
}

// PresignTTL returns how long upload URLs stay valid.
func (s StorageConfig) PresignTTL() time.Duration {
	if s.PresignTTLSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.PresignTTLSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
