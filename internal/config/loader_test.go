package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLoader returns a loader whose credential lookups only see env.
func newTestLoader(path string, env map[string]string) *Loader {
	l := NewLoader(path)
	l.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return l
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nonexistent.json")

		cfg, err := newTestLoader(configPath, nil).Load()

		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Gateway.Port)
		assert.Equal(t, 30*time.Minute, cfg.Session.Timeout)
		assert.Empty(t, cfg.AI.Profiles)
		assert.NotEmpty(t, cfg.DataDir)
		assert.Equal(t, filepath.Join(cfg.DataDir, "transcripts.db"), cfg.Session.Archive.Path)
	})

	t.Run("load config from json file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"chat": {"max_length": 500, "upstream_timeout": "10s"},
			"session": {"timeout": "5m"},
			"rate_limit": {"chat_per_minute": 3},
			"gateway": {"port": 8080},
			"logging": {"level": "debug"},
			"data_dir": "` + tmpDir + `",
			"ai": {"profiles": [{"id": "main", "provider": "openai", "api_key": "sk-file-key", "priority": 2}]}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := newTestLoader(configPath, nil).Load()

		require.NoError(t, err)
		assert.Equal(t, 500, cfg.Chat.MaxLength)
		assert.Equal(t, 2, cfg.Chat.MinLength)
		assert.Equal(t, 10*time.Second, cfg.Chat.UpstreamTimeout)
		assert.Equal(t, 5*time.Minute, cfg.Session.Timeout)
		assert.Equal(t, 10*time.Minute, cfg.Session.CleanupInterval)
		assert.Equal(t, 3, cfg.RateLimit.ChatPerMinute)
		assert.Equal(t, 8080, cfg.Gateway.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, tmpDir, cfg.DataDir)
		require.Len(t, cfg.AI.Profiles, 1)
		assert.Equal(t, "main", cfg.AI.Profiles[0].ID)
		assert.Equal(t, "sk-file-key", cfg.AI.Profiles[0].APIKey)
		assert.Equal(t, 2, cfg.AI.Profiles[0].Priority)
	})

	t.Run("load config from yaml file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")

		testConfig := "gateway:\n  port: 9090\nrate_limit:\n  service_per_minute: 50\n" +
			"logging:\n  redact_patterns:\n    - 'cand-[0-9]{6}'\n"
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := newTestLoader(configPath, nil).Load()

		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Gateway.Port)
		assert.Equal(t, 50, cfg.RateLimit.ServicePerMinute)
		assert.Equal(t, []string{"cand-[0-9]{6}"}, cfg.Logging.RedactPatterns)
	})

	t.Run("invalid json", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte("{invalid json"), 0644))

		_, err := newTestLoader(configPath, nil).Load()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("environment overrides", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("JOBSYNC_GATEWAY_PORT", "7070")
		t.Setenv("JOBSYNC_RATE_LIMIT_CHAT_PER_MINUTE", "25")
		t.Setenv("JOBSYNC_SESSION_TIMEOUT", "45m")

		cfg, err := newTestLoader(filepath.Join(tmpDir, "missing.json"), nil).Load()

		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Gateway.Port)
		assert.Equal(t, 25, cfg.RateLimit.ChatPerMinute)
		assert.Equal(t, 45*time.Minute, cfg.Session.Timeout)
	})
}

func TestLoaderCredentials(t *testing.T) {
	t.Run("gemini key creates a profile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.json")

		cfg, err := newTestLoader(path, map[string]string{"GEMINI_API_KEY": "AIza-env"}).Load()

		require.NoError(t, err)
		require.Len(t, cfg.AI.Profiles, 1)
		assert.Equal(t, "gemini", cfg.AI.Profiles[0].Provider)
		assert.Equal(t, "AIza-env", cfg.AI.Profiles[0].APIKey)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("all providers in priority order", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.json")
		env := map[string]string{
			"GEMINI_API_KEY":    "AIza-env",
			"OPENAI_API_KEY":    "sk-env",
			"ANTHROPIC_API_KEY": "sk-ant-env",
		}

		cfg, err := newTestLoader(path, env).Load()

		require.NoError(t, err)
		require.Len(t, cfg.AI.Profiles, 3)
		assert.Equal(t, "gemini", cfg.AI.Profiles[0].Provider)
		assert.Equal(t, "openai", cfg.AI.Profiles[1].Provider)
		assert.Equal(t, "anthropic", cfg.AI.Profiles[2].Provider)
		assert.Less(t, cfg.AI.Profiles[0].Priority, cfg.AI.Profiles[1].Priority)
		assert.Less(t, cfg.AI.Profiles[1].Priority, cfg.AI.Profiles[2].Priority)
	})

	t.Run("blank key is ignored", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.json")

		cfg, err := newTestLoader(path, map[string]string{"GEMINI_API_KEY": "  "}).Load()

		require.NoError(t, err)
		assert.Empty(t, cfg.AI.Profiles)
		assert.Error(t, cfg.Validate())
	})

	t.Run("file profile without key receives env key", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		testConfig := `{"ai": {"profiles": [{"id": "g", "provider": "gemini", "model": "gemini-1.5-flash"}]}}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := newTestLoader(configPath, map[string]string{"GEMINI_API_KEY": "AIza-env"}).Load()

		require.NoError(t, err)
		require.Len(t, cfg.AI.Profiles, 1)
		assert.Equal(t, "AIza-env", cfg.AI.Profiles[0].APIKey)
		assert.Equal(t, "gemini-1.5-flash", cfg.AI.Profiles[0].Model)
	})

	t.Run("file key wins over env", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		testConfig := `{"ai": {"profiles": [{"id": "o", "provider": "openai", "api_key": "sk-file", "priority": 5}]}}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		env := map[string]string{"OPENAI_API_KEY": "sk-env", "GEMINI_API_KEY": "AIza-env"}
		cfg, err := newTestLoader(configPath, env).Load()

		require.NoError(t, err)
		require.Len(t, cfg.AI.Profiles, 2)
		assert.Equal(t, "sk-file", cfg.AI.Profiles[0].APIKey)
		assert.Equal(t, "gemini", cfg.AI.Profiles[1].Provider)
		assert.Greater(t, cfg.AI.Profiles[1].Priority, 5)
	})
}

func TestLoaderSave(t *testing.T) {
	t.Run("save and reload", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "config.json")

		cfg := validConfig()
		cfg.Gateway.Port = 6060
		cfg.Session.Timeout = 15 * time.Minute
		cfg.Logging.Level = "warn"
		cfg.DataDir = tmpDir

		loader := newTestLoader(configPath, nil)
		require.NoError(t, loader.Save(cfg))

		_, err := os.Stat(configPath)
		require.NoError(t, err)

		loaded, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, 6060, loaded.Gateway.Port)
		assert.Equal(t, 15*time.Minute, loaded.Session.Timeout)
		assert.Equal(t, "warn", loaded.Logging.Level)
		require.Len(t, loaded.AI.Profiles, 1)
		assert.Equal(t, cfg.AI.Profiles[0].APIKey, loaded.AI.Profiles[0].APIKey)
	})
}

func TestConfigType(t *testing.T) {
	assert.Equal(t, "json", configType("/a/b.json"))
	assert.Equal(t, "yaml", configType("/a/b.yaml"))
	assert.Equal(t, "yaml", configType("/a/b.YML"))
	assert.Equal(t, "json", configType("/a/noext"))
}

func TestLoadConvenience(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("GEMINI_API_KEY", "AIza-convenience")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load(filepath.Join(tmpDir, "missing.json"))

	require.NoError(t, err)
	require.Len(t, cfg.AI.Profiles, 1)
	assert.Equal(t, "AIza-convenience", cfg.AI.Profiles[0].APIKey)
}
