package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. JOBSYNC_GATEWAY_PORT.
	EnvPrefix = "JOBSYNC"

	defaultDirName  = ".jobsync"
	defaultFileName = "chatgateway.json"
)

// credentialEnv maps provider credential variables to providers, in the
// priority order their profiles are created.
var credentialEnv = []struct {
	env      string
	provider string
}{
	{"GEMINI_API_KEY", "gemini"},
	{"OPENAI_API_KEY", "openai"},
	{"ANTHROPIC_API_KEY", "anthropic"},
}

// Loader handles configuration loading
type Loader struct {
	configPath string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		lookupEnv:  os.LookupEnv,
	}
}

// Load reads defaults, then the config file if it exists, then environment
// overrides, then provider credentials from the environment.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType(configType(configPath))
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	l.applyCredentials(cfg)

	// Set data directory if not specified
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, defaultDirName)
	}

	// Set archive path if not specified
	if cfg.Session.Archive.Path == "" {
		cfg.Session.Archive.Path = filepath.Join(cfg.DataDir, "transcripts.db")
	}

	return cfg, nil
}

// applyCredentials fills profiles from GEMINI_API_KEY, OPENAI_API_KEY and
// ANTHROPIC_API_KEY. A profile for the provider without a key receives it;
// otherwise a new profile is appended.
func (l *Loader) applyCredentials(cfg *Config) {
	base := 0
	for _, p := range cfg.AI.Profiles {
		if p.Priority >= base {
			base = p.Priority + 1
		}
	}

	for i, ce := range credentialEnv {
		key, ok := l.lookupEnv(ce.env)
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}

		found := false
		for j := range cfg.AI.Profiles {
			p := &cfg.AI.Profiles[j]
			if p.Provider != ce.provider {
				continue
			}
			found = true
			if p.APIKey == "" {
				p.APIKey = key
			}
		}
		if !found {
			cfg.AI.Profiles = append(cfg.AI.Profiles, AIProfile{
				ID:       ce.provider,
				Provider: ce.provider,
				APIKey:   key,
				Priority: base + i,
			})
		}
	}
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType(configType(configPath))
	for key, value := range settingsMap(cfg) {
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, defaultDirName, defaultFileName)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// setDefaults registers every key so environment overrides apply to keys
// that are absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	for key, value := range settingsMap(cfg) {
		v.SetDefault(key, value)
	}
}

// settingsMap flattens cfg into dotted viper keys. Durations are written as
// strings such as "30m0s".
func settingsMap(cfg *Config) map[string]interface{} {
	profiles := make([]map[string]interface{}, 0, len(cfg.AI.Profiles))
	for _, p := range cfg.AI.Profiles {
		profiles = append(profiles, map[string]interface{}{
			"id":          p.ID,
			"provider":    p.Provider,
			"api_key":     p.APIKey,
			"model":       p.Model,
			"base_url":    p.BaseURL,
			"max_tokens":  p.MaxTokens,
			"temperature": p.Temperature,
			"priority":    p.Priority,
		})
	}

	return map[string]interface{}{
		"service.name": cfg.Service.Name,

		"chat.min_length":       cfg.Chat.MinLength,
		"chat.max_length":       cfg.Chat.MaxLength,
		"chat.system_prompt":    cfg.Chat.SystemPrompt,
		"chat.upstream_timeout": durationString(cfg.Chat.UpstreamTimeout),

		"session.timeout":          durationString(cfg.Session.Timeout),
		"session.cleanup_interval": durationString(cfg.Session.CleanupInterval),
		"session.cleanup_schedule": cfg.Session.CleanupSchedule,
		"session.archive.enabled":  cfg.Session.Archive.Enabled,
		"session.archive.path":     cfg.Session.Archive.Path,

		"rate_limit.chat_per_minute":    cfg.RateLimit.ChatPerMinute,
		"rate_limit.service_per_minute": cfg.RateLimit.ServicePerMinute,
		"rate_limit.window":             durationString(cfg.RateLimit.Window),
		"rate_limit.backend":            cfg.RateLimit.Backend,
		"rate_limit.redis_addr":         cfg.RateLimit.RedisAddr,
		"rate_limit.redis_password":     cfg.RateLimit.RedisPassword,
		"rate_limit.redis_db":           cfg.RateLimit.RedisDB,
		"rate_limit.redis_prefix":       cfg.RateLimit.RedisPrefix,

		"gateway.host":            cfg.Gateway.Host,
		"gateway.port":            cfg.Gateway.Port,
		"gateway.allowed_origins": cfg.Gateway.AllowedOrigins,
		"gateway.max_body_bytes":  cfg.Gateway.MaxBodyBytes,

		"logging.level":           cfg.Logging.Level,
		"logging.format":          cfg.Logging.Format,
		"logging.file":            cfg.Logging.File,
		"logging.max_size":        cfg.Logging.MaxSize,
		"logging.max_age":         cfg.Logging.MaxAge,
		"logging.compress":        cfg.Logging.Compress,
		"logging.redaction":       cfg.Logging.Redaction,
		"logging.redact_patterns": cfg.Logging.RedactPatterns,

		"telemetry.enabled":      cfg.Telemetry.Enabled,
		"telemetry.sample_ratio": cfg.Telemetry.SampleRatio,

		"ai.profiles": profiles,

		"data_dir": cfg.DataDir,
	}
}

func durationString(d time.Duration) string {
	return d.String()
}
