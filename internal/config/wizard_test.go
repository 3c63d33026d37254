package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardRun(t *testing.T) {
	t.Run("collects answers", func(t *testing.T) {
		input := strings.Join([]string{
			"AIzaSyWizardKey", // gemini
			"",                // openai
			"sk-ant-wizard",   // anthropic
			"8081",            // port
			"20",              // chat per minute
			"debug",           // log level
		}, "\n") + "\n"
		var out bytes.Buffer

		cfg, err := NewWizardWithIO(strings.NewReader(input), &out).Run()

		require.NoError(t, err)
		require.Len(t, cfg.AI.Profiles, 2)
		assert.Equal(t, "gemini", cfg.AI.Profiles[0].Provider)
		assert.Equal(t, 0, cfg.AI.Profiles[0].Priority)
		assert.Equal(t, "anthropic", cfg.AI.Profiles[1].Provider)
		assert.Equal(t, 1, cfg.AI.Profiles[1].Priority)
		assert.Equal(t, 8081, cfg.Gateway.Port)
		assert.Equal(t, 20, cfg.RateLimit.ChatPerMinute)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Contains(t, out.String(), "Configuration complete!")
		assert.NoError(t, cfg.Validate())
	})

	t.Run("reprompts on a malformed key and keeps defaults", func(t *testing.T) {
		input := "bad-key\nAIzaSyGood\n\n\n\n\n\n"
		var out bytes.Buffer

		cfg, err := NewWizardWithIO(strings.NewReader(input), &out).Run()

		require.NoError(t, err)
		require.Len(t, cfg.AI.Profiles, 1)
		assert.Equal(t, "AIzaSyGood", cfg.AI.Profiles[0].APIKey)
		assert.Equal(t, 5000, cfg.Gateway.Port)
		assert.Equal(t, 10, cfg.RateLimit.ChatPerMinute)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Contains(t, out.String(), "invalid Gemini API key format")
	})

	t.Run("requires a key", func(t *testing.T) {
		_, err := NewWizardWithIO(strings.NewReader("\n\n\n"), &bytes.Buffer{}).Run()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one API key")
	})

	t.Run("invalid answers fall back", func(t *testing.T) {
		input := "AIzaSyGood\n\n\nnot-a-port\n-3\nloud\n"
		var out bytes.Buffer

		cfg, err := NewWizardWithIO(strings.NewReader(input), &out).Run()

		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Gateway.Port)
		assert.Equal(t, 10, cfg.RateLimit.ChatPerMinute)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Contains(t, out.String(), "Warning")
	})
}
