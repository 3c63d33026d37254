package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Config represents the chat gateway configuration
type Config struct {
	Service   ServiceConfig   `json:"service" mapstructure:"service"`
	Chat      ChatConfig      `json:"chat" mapstructure:"chat"`
	Session   SessionConfig   `json:"session" mapstructure:"session"`
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`
	Gateway   GatewayConfig   `json:"gateway" mapstructure:"gateway"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`
	AI        AIConfig        `json:"ai" mapstructure:"ai"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServiceConfig names the service in health responses and telemetry
type ServiceConfig struct {
	Name string `json:"name" mapstructure:"name"`
}

// ChatConfig holds message and model-call settings
type ChatConfig struct {
	MinLength       int           `json:"min_length" mapstructure:"min_length"`
	MaxLength       int           `json:"max_length" mapstructure:"max_length"`
	SystemPrompt    string        `json:"system_prompt" mapstructure:"system_prompt"`
	UpstreamTimeout time.Duration `json:"upstream_timeout" mapstructure:"upstream_timeout"`
}

// SessionConfig holds session lifetime settings
type SessionConfig struct {
	Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
	CleanupInterval time.Duration `json:"cleanup_interval" mapstructure:"cleanup_interval"`
	// CleanupSchedule is an optional cron expression that overrides
	// CleanupInterval.
	CleanupSchedule string        `json:"cleanup_schedule" mapstructure:"cleanup_schedule"`
	Archive         ArchiveConfig `json:"archive" mapstructure:"archive"`
}

// ArchiveConfig controls the transcript archive for evicted sessions
type ArchiveConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// RateLimitConfig holds limiter settings
type RateLimitConfig struct {
	ChatPerMinute    int           `json:"chat_per_minute" mapstructure:"chat_per_minute"`
	ServicePerMinute int           `json:"service_per_minute" mapstructure:"service_per_minute"`
	Window           time.Duration `json:"window" mapstructure:"window"`
	Backend          string        `json:"backend" mapstructure:"backend"` // memory, redis
	RedisAddr        string        `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword    string        `json:"redis_password" mapstructure:"redis_password"`
	RedisDB          int           `json:"redis_db" mapstructure:"redis_db"`
	RedisPrefix      string        `json:"redis_prefix" mapstructure:"redis_prefix"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	Format    string `json:"format" mapstructure:"format"` // console, json
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`

	// RedactPatterns are extra regular expressions masked in log output.
	RedactPatterns []string `json:"redact_patterns,omitempty" mapstructure:"redact_patterns"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Port           int      `json:"port" mapstructure:"port"`
	Host           string   `json:"host" mapstructure:"host"`
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
	MaxBodyBytes   int64    `json:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// TelemetryConfig toggles OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// SampleRatio is the fraction of requests traced, from 0 to 1.
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID          string  `json:"id" mapstructure:"id"`
	Provider    string  `json:"provider" mapstructure:"provider"` // gemini, openai, anthropic
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Model       string  `json:"model" mapstructure:"model"`
	BaseURL     string  `json:"base_url" mapstructure:"base_url"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	Priority    int     `json:"priority" mapstructure:"priority"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "JobSync AI Chatbot",
		},
		Chat: ChatConfig{
			MinLength:       2,
			MaxLength:       1000,
			UpstreamTimeout: 30 * time.Second,
		},
		Session: SessionConfig{
			Timeout:         30 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			ChatPerMinute:    10,
			ServicePerMinute: 100,
			Window:           time.Minute,
			Backend:          "memory",
			RedisPrefix:      "jobsync:ratelimit",
		},
		Gateway: GatewayConfig{
			Port:           5000,
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
			MaxBodyBytes:   64 << 10,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "console",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Telemetry: TelemetryConfig{
			SampleRatio: 1,
		},
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Masked returns a copy with credentials replaced by a short hint.
func (c *Config) Masked() *Config {
	out := *c
	out.AI.Profiles = make([]AIProfile, len(c.AI.Profiles))
	for i, p := range c.AI.Profiles {
		p.APIKey = maskSecret(p.APIKey)
		out.AI.Profiles[i] = p
	}
	out.RateLimit.RedisPassword = maskSecret(c.RateLimit.RedisPassword)
	out.Gateway.AllowedOrigins = append([]string(nil), c.Gateway.AllowedOrigins...)
	return &out
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// Validate checks if the configuration is valid. A config without any
// usable AI credential is rejected.
func (c *Config) Validate() error {
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: set GEMINI_API_KEY (or OPENAI_API_KEY / ANTHROPIC_API_KEY) or add ai.profiles")
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.Provider == "" {
			return fmt.Errorf("AI profile %s: provider is required", profile.ID)
		}
		if strings.TrimSpace(profile.APIKey) == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
		if !isValidProvider(profile.Provider) {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: %s)", profile.ID, profile.Provider, strings.Join(validProviders, ", "))
		}
	}

	if c.Chat.MinLength < 1 {
		return fmt.Errorf("chat.min_length must be at least 1, got %d", c.Chat.MinLength)
	}
	if c.Chat.MaxLength < c.Chat.MinLength {
		return fmt.Errorf("chat.max_length (%d) must not be below chat.min_length (%d)", c.Chat.MaxLength, c.Chat.MinLength)
	}
	if c.Chat.UpstreamTimeout <= 0 {
		return fmt.Errorf("chat.upstream_timeout must be positive")
	}

	if c.Session.Timeout <= 0 {
		return fmt.Errorf("session.timeout must be positive")
	}
	if c.Session.CleanupInterval <= 0 {
		return fmt.Errorf("session.cleanup_interval must be positive")
	}
	if c.Session.Archive.Enabled && c.Session.Archive.Path == "" {
		return fmt.Errorf("session.archive.path is required when the archive is enabled")
	}

	if c.RateLimit.ChatPerMinute <= 0 {
		return fmt.Errorf("rate_limit.chat_per_minute must be positive")
	}
	if c.RateLimit.ServicePerMinute <= 0 {
		return fmt.Errorf("rate_limit.service_per_minute must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}
	switch c.RateLimit.Backend {
	case "", "memory":
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			return fmt.Errorf("rate_limit.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid rate_limit.backend %s (must be: memory, redis)", c.RateLimit.Backend)
	}

	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid gateway port: %d", c.Gateway.Port)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1, got %g", c.Telemetry.SampleRatio)
	}

	return nil
}

var validProviders = []string{"gemini", "openai", "anthropic"}

func isValidProvider(provider string) bool {
	for _, vp := range validProviders {
		if provider == vp {
			return true
		}
	}
	return false
}
