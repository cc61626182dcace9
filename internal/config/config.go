package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
// Everything is read once at startup; there is no runtime reconfiguration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	JWT       JWTConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"mincommerce_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// RedisConfig holds configuration for the status cache and the queue backend.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// QueueConfig selects the queue backend and bounds the retry budget.
type QueueConfig struct {
	Backend           string `envconfig:"QUEUE_BACKEND" default:"redis"`
	MaxAttempts       int    `envconfig:"QUEUE_MAX_ATTEMPTS" default:"5"`
	BackoffInitial    int    `envconfig:"QUEUE_BACKOFF_INITIAL_MS" default:"500"`          // milliseconds
	JobTTL            int    `envconfig:"QUEUE_JOB_TTL_HOURS" default:"24"`                // hours
	VisibilitySeconds int    `envconfig:"QUEUE_VISIBILITY_TIMEOUT_SECONDS" default:"300"` // must exceed the job timeout
}

// InitialBackoff returns the first retry delay.
func (c QueueConfig) InitialBackoff() time.Duration {
	return time.Duration(c.BackoffInitial) * time.Millisecond
}

// JobRetention returns how long job records are kept in the backend.
func (c QueueConfig) JobRetention() time.Duration {
	return time.Duration(c.JobTTL) * time.Hour
}

// VisibilityTimeout returns how long an in-flight claim is trusted
// before the job may be redelivered.
func (c QueueConfig) VisibilityTimeout() time.Duration {
	return time.Duration(c.VisibilitySeconds) * time.Second
}

// WorkerConfig controls the purchase worker pool.
type WorkerConfig struct {
	Concurrency      int `envconfig:"WORKER_CONCURRENCY" default:"8"`
	JobTimeout       int `envconfig:"WORKER_JOB_TIMEOUT_SECONDS" default:"10"`
	AvgServiceMillis int `envconfig:"WORKER_AVG_SERVICE_MS" default:"500"` // per-job estimate for wait hints
}

// Timeout returns the hard per-job deadline.
func (c WorkerConfig) Timeout() time.Duration {
	return time.Duration(c.JobTimeout) * time.Second
}

// AvgServiceTime returns the advisory per-job service time.
func (c WorkerConfig) AvgServiceTime() time.Duration {
	return time.Duration(c.AvgServiceMillis) * time.Millisecond
}

// JWTConfig holds token signing configuration.
// WARNING: the default secret is for local development only.
type JWTConfig struct {
	Secret     string `envconfig:"JWT_SECRET" default:"dev-secret-change-me"` // CHANGE IN PRODUCTION
	TTLMinutes int    `envconfig:"JWT_TTL_MINUTES" default:"60"`
}

// TTL returns the token lifetime.
func (c JWTConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// CacheConfig holds TTLs for the status cache.
type CacheConfig struct {
	SaleStatusTTL int `envconfig:"CACHE_SALE_STATUS_TTL_SECONDS" default:"30"`
	PurchaseTTL   int `envconfig:"CACHE_PURCHASE_TTL_SECONDS" default:"3600"`
}

// SaleTTL returns the sale-status projection TTL.
func (c CacheConfig) SaleTTL() time.Duration {
	return time.Duration(c.SaleStatusTTL) * time.Second
}

// PurchaseStatusTTL returns the per-user purchase snapshot TTL.
// Sized to outlast plausible client polling.
func (c CacheConfig) PurchaseStatusTTL() time.Duration {
	return time.Duration(c.PurchaseTTL) * time.Second
}

// RateLimitConfig bounds purchase admissions per user.
type RateLimitConfig struct {
	MaxAttempts   int `envconfig:"RATE_LIMIT_MAX_ATTEMPTS" default:"5"`
	WindowSeconds int `envconfig:"RATE_LIMIT_WINDOW_SECONDS" default:"60"`
}

// Window returns the rate-limit window.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// AuthConfig holds login-related settings.
type AuthConfig struct {
	AdminEmails []string `envconfig:"ADMIN_EMAILS" default:"admin@mincommerce.dev"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
