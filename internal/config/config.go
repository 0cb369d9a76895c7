package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Search   SearchConfig   `mapstructure:"search"   validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`

	// TokenLifetimeMinutes is the access token lifetime in minutes.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`

	// MaxRetries is the number of additional attempts made after a transient
	// API failure.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// RetryDelaySeconds is the base delay for exponential backoff between
	// retry attempts.
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// SearchConfig contains settings for the academic search backend.
type SearchConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// MailTo is sent with OpenAlex requests to join their polite pool.
	MailTo string `mapstructure:"mail_to" validate:"omitempty,email"`
}

// TaskConfig contains settings for the task orchestration layer.
type TaskConfig struct {
	// MaxTaskDuration bounds a single agent execution; a stalled pipeline is
	// cancelled and the task marked failed once this elapses.
	MaxTaskDuration time.Duration `mapstructure:"max_task_duration" validate:"required"`

	// StreamInterval is the poll cadence for progress streams.
	StreamInterval time.Duration `mapstructure:"stream_interval" validate:"required"`

	// SectionConcurrency caps the number of review sections written in
	// parallel by the pipeline's content-writing stage.
	SectionConcurrency int `mapstructure:"section_concurrency" validate:"required,gt=0"`
}
