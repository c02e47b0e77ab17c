// Package config defines the configuration for the CappyChat reconciliation
// service. Configuration is loaded once at process start and is immutable
// thereafter; values come from the OS environment with an optional .env file
// for local development. Any missing required value or invalid format fails
// startup immediately.
package config

import (
	"time"

	"github.com/CyberBoyAyush/cappychat/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"cappychat"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server    ServerConfig
	Firestore FirestoreConfig
	Redis     RedisConfig
	Billing   BillingConfig
	Security  SecurityConfig
	Sweep     SweepConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// FirestoreConfig holds the document store connection settings. When
// UseMemoryStore is set the service runs entirely on the in-memory store,
// which is intended for local development and tests only.
type FirestoreConfig struct {
	ProjectID          string `envconfig:"FIRESTORE_PROJECT_ID"`
	CredentialsFile    string `envconfig:"FIRESTORE_CREDENTIALS_FILE"`
	UsersCollection    string `envconfig:"FIRESTORE_USERS_COLLECTION" default:"users"`
	SessionsCollection string `envconfig:"FIRESTORE_SESSIONS_COLLECTION" default:"sessions"`
	UseMemoryStore     bool   `envconfig:"USE_MEMORY_STORE" default:"false"`
}

// RedisConfig holds the settings for the Redis-backed sweep lock. An empty
// Addr falls back to an in-process lock, which only guards a single instance.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password SecretString  `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL  time.Duration `envconfig:"SWEEP_LOCK_TTL" default:"2m"`
}

// BillingConfig holds payment provider integration settings.
type BillingConfig struct {
	WebhookSecret  SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	RetryThreshold int          `envconfig:"PAYMENT_RETRY_THRESHOLD" default:"3" validate:"min=1"`
}

// SecurityConfig holds the shared key guarding the admin and scheduled
// endpoints.
type SecurityConfig struct {
	AdminKey SecretString `envconfig:"ADMIN_API_KEY" validate:"required"`
}

// SweepConfig tunes the bulk reconciliation sweeps.
type SweepConfig struct {
	PeriodDays int           `envconfig:"RESET_PERIOD_DAYS" default:"30" validate:"min=1"`
	PageSize   int           `envconfig:"SWEEP_PAGE_SIZE" default:"100" validate:"min=1"`
	Budget     time.Duration `envconfig:"SWEEP_BUDGET" default:"50s"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
