package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidatorAPIKey(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		key      string
		provider string
		wantErr  bool
	}{
		{"valid anthropic", "sk-ant-abc", "anthropic", false},
		{"invalid anthropic", "sk-abc", "anthropic", true},
		{"valid openai", "sk-abc", "openai", false},
		{"invalid openai", "abc", "openai", true},
		{"valid gemini", "AIzaSyAbc", "gemini", false},
		{"invalid gemini", "sk-abc", "gemini", true},
		{"empty", "", "gemini", true},
		{"unknown provider accepts anything", "whatever", "other", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAPIKey(tt.key, tt.provider)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatorScalars(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateTemperature(0))
	assert.NoError(t, v.ValidateTemperature(1.5))
	assert.Error(t, v.ValidateTemperature(-0.1))
	assert.Error(t, v.ValidateTemperature(2.1))

	assert.NoError(t, v.ValidateMaxTokens(0))
	assert.NoError(t, v.ValidateMaxTokens(4096))
	assert.Error(t, v.ValidateMaxTokens(-1))
	assert.Error(t, v.ValidateMaxTokens(300000))

	assert.NoError(t, v.ValidateModel(""))
	assert.NoError(t, v.ValidateModel("gemini-1.5-pro"))
	assert.Error(t, v.ValidateModel("gemini 1.5"))

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level))
	}
	assert.Error(t, v.ValidateLogLevel("verbose"))

	assert.NoError(t, v.ValidateLogFormat("json"))
	assert.NoError(t, v.ValidateLogFormat(""))
	assert.Error(t, v.ValidateLogFormat("xml"))

	assert.NoError(t, v.ValidateRedactPatterns(nil))
	assert.NoError(t, v.ValidateRedactPatterns([]string{`emp-[0-9]{6}`}))
	assert.Error(t, v.ValidateRedactPatterns([]string{`emp-[0-9`}))
}

func TestValidatorValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("clean config", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(validConfig()))
	})

	t.Run("collects every finding", func(t *testing.T) {
		cfg := validConfig()
		cfg.AI.Profiles[0].APIKey = "sk-not-gemini"
		cfg.AI.Profiles[0].Temperature = 3
		cfg.RateLimit.ChatPerMinute = 500
		cfg.Session.CleanupInterval = time.Hour
		cfg.Logging.Level = "loud"
		cfg.Logging.RedactPatterns = []string{"("}

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 6)
	})
}
