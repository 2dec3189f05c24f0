package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"twilio": {"account_sid": "AC123", "auth_token": "secret", "from_number": "+14155551234"},
		"database": {"path": "/tmp/mealbot.db"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.twilio.com", cfg.Twilio.BaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Server.RequestTimeoutSec)
	assert.Equal(t, 1000, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1024, cfg.Dedup.Capacity)
	assert.Equal(t, "mealbot", cfg.Tracing.ServiceName)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
}

func TestLoadConfig_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing account sid",
			content: `{"twilio": {"from_number": "+1"}, "database": {"path": "/tmp/x.db"}}`,
			wantErr: ErrMissingTwilioSID,
		},
		{
			name:    "missing from number",
			content: `{"twilio": {"account_sid": "AC1"}, "database": {"path": "/tmp/x.db"}}`,
			wantErr: ErrMissingFromNumber,
		},
		{
			name:    "missing db path",
			content: `{"twilio": {"account_sid": "AC1", "from_number": "+1"}}`,
			wantErr: ErrMissingDBPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadConfig(path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"twilio": {"account_sid": "ACfile", "auth_token": "filetoken", "from_number": "+10000000000"},
		"database": {"path": "/tmp/file.db"}
	}`)

	t.Setenv("TWILIO_ACCOUNT_SID", "ACenv")
	t.Setenv("TWILIO_AUTH_TOKEN", "envtoken")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "ACenv", cfg.Twilio.AccountSID)
	assert.Equal(t, "envtoken", cfg.Twilio.AuthToken)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadConfig_ProductionRequiresAuthToken(t *testing.T) {
	path := writeConfig(t, `{
		"twilio": {"account_sid": "AC1", "from_number": "+1"},
		"database": {"path": "/tmp/x.db"}
	}`)

	t.Setenv("MEALBOT_ENV", "production")
	t.Setenv("TWILIO_AUTH_TOKEN", "")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth token is required in production")
}

func TestLoadConfig_ProductionRejectsDebugLogging(t *testing.T) {
	path := writeConfig(t, `{
		"twilio": {"account_sid": "AC1", "auth_token": "tok", "from_number": "+1"},
		"database": {"path": "/tmp/x.db"},
		"log_level": "debug"
	}`)

	t.Setenv("MEALBOT_ENV", "production")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debug logging")
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_PathTraversalRejected(t *testing.T) {
	_, err := LoadConfig("../../etc/passwd")
	assert.Error(t, err)
}
