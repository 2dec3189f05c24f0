package models

// Config holds the application configuration
type Config struct {
	Twilio   TwilioConfig   `json:"twilio"`
	OpenAI   OpenAIConfig   `json:"openai"`
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	Retry    RetryConfig    `json:"retry"`
	Dedup    DedupConfig    `json:"dedup"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"log_level"`
}

// TwilioConfig holds the chat-provider credentials and tuning.
type TwilioConfig struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	FromNumber string `json:"from_number"`
	BaseURL    string `json:"base_url"`
	TimeoutSec int    `json:"timeout_sec"`
}

// OpenAIConfig holds the optional intent-classification fallback settings.
// An empty APIKey disables the LLM stage entirely.
type OpenAIConfig struct {
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	TimeoutSec int    `json:"timeout_sec"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// ServerConfig holds HTTP server related configurations
type ServerConfig struct {
	Port              int `json:"port"`
	RequestTimeoutSec int `json:"request_timeout_sec"`
	RateLimitPerMin   int `json:"rate_limit_per_min"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"max_backoff_ms"`
	MaxAttempts      int `json:"max_attempts"`
}

// DedupConfig bounds the in-memory recent-message window.
type DedupConfig struct {
	Capacity int `json:"capacity"`
}

// TracingConfig holds OpenTelemetry related configurations
type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	ServiceName  string  `json:"service_name"`
	Environment  string  `json:"environment"`
	OTLPEndpoint string  `json:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate"`
	UseStdout    bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
