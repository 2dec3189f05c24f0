package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"mealbot/internal/constants"
	"mealbot/internal/models"
	"mealbot/internal/security"
)

var (
	ErrMissingTwilioSID  = models.ConfigError{Message: "missing Twilio account SID"}
	ErrMissingFromNumber = models.ConfigError{Message: "missing Twilio from number"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
)

const defaultTwilioBaseURL = "https://api.twilio.com"

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Twilio.AccountSID == "" {
		return ErrMissingTwilioSID
	}
	if c.Twilio.FromNumber == "" {
		return ErrMissingFromNumber
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Twilio.BaseURL == "" {
		c.Twilio.BaseURL = defaultTwilioBaseURL
	}
	if c.Twilio.TimeoutSec <= 0 {
		c.Twilio.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-5"
	}
	if c.OpenAI.TimeoutSec <= 0 {
		c.OpenAI.TimeoutSec = constants.DefaultLLMTimeoutSec
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.RequestTimeoutSec <= 0 {
		c.Server.RequestTimeoutSec = constants.DefaultRequestTimeoutSec
	}
	if c.Server.RateLimitPerMin <= 0 {
		c.Server.RateLimitPerMin = constants.DefaultRateLimitPerMinute
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}
	if c.Dedup.Capacity <= 0 {
		c.Dedup.Capacity = constants.DefaultDedupCapacity
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "mealbot"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 1.0
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	// SECURITY: credentials should come from the environment, not the file
	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		c.Twilio.AccountSID = sid
	}
	if token := os.Getenv("TWILIO_AUTH_TOKEN"); token != "" {
		c.Twilio.AuthToken = token
	}
	if from := os.Getenv("TWILIO_PHONE_NUMBER"); from != "" {
		c.Twilio.FromNumber = from
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.OpenAI.APIKey = key
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("MEALBOT_ENV") == "production"

	if isProduction {
		if c.Twilio.AuthToken == "" {
			return models.ConfigError{Message: "Twilio auth token is required in production (set TWILIO_AUTH_TOKEN environment variable)"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else {
		if c.Twilio.AuthToken == "" {
			fmt.Fprintf(os.Stderr, "WARNING: Twilio auth token not set. Outbound sends will fail until TWILIO_AUTH_TOKEN is provided.\n")
		}
	}

	return nil
}
