package cli

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jobsync/chatgateway/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig saves a config rooted in a temp dir and returns its path.
func writeTestConfig(t *testing.T, mutate func(*config.Config)) (string, *config.Config) {
	t.Helper()
	for _, env := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(env, "")
	}
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.Session.Archive.Path = filepath.Join(dir, "transcripts.db")
	cfg.AI.Profiles = []config.AIProfile{{ID: "gemini", Provider: "gemini", APIKey: "AIzaSyCliTestKey123456", Priority: 0}}
	if mutate != nil {
		mutate(cfg)
	}
	path := filepath.Join(dir, "chatgateway.json")
	require.NoError(t, config.NewLoader(path).Save(cfg))
	return path, cfg
}

func TestStatusCommand(t *testing.T) {
	t.Run("stopped", func(t *testing.T) {
		path, _ := writeTestConfig(t, nil)

		out, err := execute(t, "", "status", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Status: stopped")
	})

	t.Run("running and healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status":"healthy","service":"JobSync AI Chatbot"}`)
		}))
		defer srv.Close()
		_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
		require.NoError(t, err)
		port, err := strconv.Atoi(portStr)
		require.NoError(t, err)

		path, cfg := writeTestConfig(t, func(c *config.Config) {
			c.Gateway.Host = "127.0.0.1"
			c.Gateway.Port = port
		})
		require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "chatgateway.pid"), []byte(strconv.Itoa(os.Getpid())), 0644))

		out, err := execute(t, "", "status", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Status: running")
		assert.Contains(t, out, fmt.Sprintf("PID: %d", os.Getpid()))
		assert.Contains(t, out, "Health: healthy (JobSync AI Chatbot)")
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds only", 45 * time.Second, "45s"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m30s"},
		{"hours minutes seconds", 3*time.Hour + 15*time.Minute + 20*time.Second, "3h15m20s"},
		{"zero", 0, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatDuration(tt.duration)
			assert.Equal(t, tt.expected, result)
		})
	}
}
