package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator checks configuration values that are suspicious but not fatal
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	case "gemini":
		if !strings.HasPrefix(key, "AIza") {
			return fmt.Errorf("invalid Gemini API key format (should start with AIza)")
		}
	}

	return nil
}

// ValidateModel validates a model name
func (v *Validator) ValidateModel(model string) error {
	if model == "" {
		return nil // provider default
	}
	if strings.ContainsAny(model, " \t\n") {
		return fmt.Errorf("model name must not contain whitespace: %q", model)
	}
	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("max tokens must not be negative, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateLogFormat validates log output format
func (v *Validator) ValidateLogFormat(format string) error {
	switch format {
	case "", "console", "json":
		return nil
	}
	return fmt.Errorf("invalid log format: %s (must be one of: console, json)", format)
}

// ValidateRedactPatterns checks that every extra redaction pattern compiles
func (v *Validator) ValidateRedactPatterns(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid logging.redact_patterns entry %q: %w", pattern, err)
		}
	}
	return nil
}

// ValidateConfig reports every suspicious value. Unlike Config.Validate the
// findings are advisory; the daemon logs them as warnings.
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	for i, profile := range cfg.AI.Profiles {
		if profile.Provider != "" {
			if err := v.ValidateAPIKey(profile.APIKey, profile.Provider); err != nil {
				errors = append(errors, fmt.Errorf("AI profile %d (%s): %w", i, profile.ID, err))
			}
		}
		if err := v.ValidateModel(profile.Model); err != nil {
			errors = append(errors, fmt.Errorf("AI profile %d (%s): %w", i, profile.ID, err))
		}
		if err := v.ValidateTemperature(profile.Temperature); err != nil {
			errors = append(errors, fmt.Errorf("AI profile %d (%s): %w", i, profile.ID, err))
		}
		if err := v.ValidateMaxTokens(profile.MaxTokens); err != nil {
			errors = append(errors, fmt.Errorf("AI profile %d (%s): %w", i, profile.ID, err))
		}
	}

	if cfg.RateLimit.ServicePerMinute > 0 && cfg.RateLimit.ChatPerMinute > cfg.RateLimit.ServicePerMinute {
		errors = append(errors, fmt.Errorf("rate_limit.chat_per_minute (%d) exceeds rate_limit.service_per_minute (%d); the service limit will apply first",
			cfg.RateLimit.ChatPerMinute, cfg.RateLimit.ServicePerMinute))
	}
	if cfg.Session.CleanupInterval > 0 && cfg.Session.Timeout > 0 && cfg.Session.CleanupInterval > cfg.Session.Timeout {
		errors = append(errors, fmt.Errorf("session.cleanup_interval (%s) is longer than session.timeout (%s); idle sessions will outlive their timeout",
			cfg.Session.CleanupInterval, cfg.Session.Timeout))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateLogFormat(cfg.Logging.Format); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateRedactPatterns(cfg.Logging.RedactPatterns); err != nil {
		errors = append(errors, err)
	}

	return errors
}
