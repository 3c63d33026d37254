package daemon

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jobsync/chatgateway/internal/config"
	"github.com/jobsync/chatgateway/pkg/orchestrator"
	"github.com/jobsync/chatgateway/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cloneConfig(cfg *config.Config) *config.Config {
	out := *cfg
	out.AI.Profiles = append([]config.AIProfile(nil), cfg.AI.Profiles...)
	out.Gateway.AllowedOrigins = append([]string(nil), cfg.Gateway.AllowedOrigins...)
	return &out
}

func TestApplyConfig(t *testing.T) {
	cfg := testConfig(t)
	d, _ := createTestDaemon(t, cfg)
	require.NoError(t, d.Start())
	defer d.Stop()

	addr := d.Status().Addr

	updated := cloneConfig(cfg)
	updated.RateLimit.ChatPerMinute = 1
	updated.Chat.MaxLength = 5
	updated.Chat.SystemPrompt = "Be brief."
	updated.Chat.UpstreamTimeout = 5 * time.Second
	d.ApplyConfig(updated)

	assert.Same(t, updated, d.GetConfig())
	settings := d.GetOrchestrator().Settings()
	assert.Equal(t, "Be brief.", settings.SystemPrompt)
	assert.Equal(t, 5*time.Second, settings.UpstreamTimeout)

	code, _ := postChat(t, addr, "reload", "hey")
	assert.Equal(t, http.StatusOK, code)

	code, body := postChat(t, addr, "reload-long", "This message is too long now")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "less than 5")

	code, body = postChat(t, addr, "reload", "hey")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Rate limit exceeded. Please try again later.", body["error"])
}

func TestApplyConfig_KeepsValidatorWhenBoundsUnchanged(t *testing.T) {
	cfg := testConfig(t)
	d, _ := createTestDaemon(t, cfg)

	custom := validation.New(3, 7)
	d.GetOrchestrator().UpdateValidator(custom)

	updated := cloneConfig(cfg)
	updated.Chat.SystemPrompt = "New prompt"
	d.ApplyConfig(updated)

	// bounds unchanged, so the validator installed above survives
	_, err := d.GetOrchestrator().HandleMessage(context.Background(), orchestrator.Request{
		SessionKey: "k",
		Message:    "12345678",
	})
	require.Error(t, err)
	assert.Equal(t, orchestrator.KindValidation, orchestrator.KindOf(err))
}

func TestRestartRequired(t *testing.T) {
	cfg := testConfig(t)

	assert.Empty(t, restartRequired(cfg, cloneConfig(cfg)))

	changed := cloneConfig(cfg)
	changed.Gateway.Port = 9999
	changed.Session.Timeout = time.Hour
	changed.RateLimit.Backend = "redis"
	changed.AI.Profiles[0].Model = "gemini-1.5-flash"
	changed.Gateway.AllowedOrigins = []string{"https://jobsync.example"}

	assert.ElementsMatch(t, []string{
		"gateway.address",
		"gateway.allowed_origins",
		"session",
		"rate_limit.backend",
		"ai.profiles",
	}, restartRequired(cfg, changed))
}

func TestConfigFileHotReload(t *testing.T) {
	cfg := testConfig(t)
	configPath := filepath.Join(cfg.DataDir, "chatgateway.json")
	loader := config.NewLoader(configPath)
	require.NoError(t, loader.Save(cfg))

	d, _ := createTestDaemon(t, cfg, WithConfigLoader(loader))
	require.NoError(t, d.Start())
	defer d.Stop()
	require.NotNil(t, d.watcher)

	updated := cloneConfig(cfg)
	updated.Chat.SystemPrompt = "Reloaded prompt"
	require.NoError(t, loader.Save(updated))

	assert.Eventually(t, func() bool {
		return d.GetOrchestrator().Settings().SystemPrompt == "Reloaded prompt"
	}, 5*time.Second, 25*time.Millisecond)

	_, err := os.Stat(configPath)
	assert.NoError(t, err)
}
