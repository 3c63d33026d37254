package daemon

import (
	"reflect"

	"github.com/jobsync/chatgateway/internal/config"
	"github.com/jobsync/chatgateway/pkg/validation"
)

// ApplyConfig applies the hot-reloadable parts of cfg: message bounds, the
// system prompt, the upstream timeout, limiter budgets and the log level.
// Everything else needs a restart and is only reported.
func (d *Daemon) ApplyConfig(cfg *config.Config) {
	d.mu.Lock()
	old := d.config
	d.config = cfg
	d.mu.Unlock()

	d.orchestrator.UpdateSettings(orchestratorSettings(cfg))

	if cfg.Chat.MinLength != old.Chat.MinLength || cfg.Chat.MaxLength != old.Chat.MaxLength {
		d.orchestrator.UpdateValidator(validation.New(cfg.Chat.MinLength, cfg.Chat.MaxLength))
	}

	if cfg.RateLimit.ChatPerMinute != old.RateLimit.ChatPerMinute {
		d.chatLimiter.SetLimit(cfg.RateLimit.ChatPerMinute)
		d.logger.Info().Int("limit", cfg.RateLimit.ChatPerMinute).Msg("Chat rate limit updated")
	}
	if cfg.RateLimit.ServicePerMinute != old.RateLimit.ServicePerMinute {
		d.serviceLimiter.SetLimit(cfg.RateLimit.ServicePerMinute)
		d.logger.Info().Int("limit", cfg.RateLimit.ServicePerMinute).Msg("Service rate limit updated")
	}

	if cfg.Logging.Level != old.Logging.Level {
		if err := d.logger.SetLevel(cfg.Logging.Level); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to change log level")
		}
	}

	if restart := restartRequired(old, cfg); len(restart) > 0 {
		d.logger.Warn().Strs("settings", restart).Msg("Changed settings take effect after a restart")
	}
}

// restartRequired lists changed settings that ApplyConfig cannot apply.
func restartRequired(old, cfg *config.Config) []string {
	var changed []string
	if old.Gateway.Host != cfg.Gateway.Host || old.Gateway.Port != cfg.Gateway.Port {
		changed = append(changed, "gateway.address")
	}
	if !reflect.DeepEqual(old.Gateway.AllowedOrigins, cfg.Gateway.AllowedOrigins) {
		changed = append(changed, "gateway.allowed_origins")
	}
	if old.Session.Timeout != cfg.Session.Timeout ||
		old.Session.CleanupInterval != cfg.Session.CleanupInterval ||
		old.Session.CleanupSchedule != cfg.Session.CleanupSchedule ||
		old.Session.Archive != cfg.Session.Archive {
		changed = append(changed, "session")
	}
	if old.RateLimit.Backend != cfg.RateLimit.Backend ||
		old.RateLimit.Window != cfg.RateLimit.Window ||
		old.RateLimit.RedisAddr != cfg.RateLimit.RedisAddr {
		changed = append(changed, "rate_limit.backend")
	}
	if !reflect.DeepEqual(old.AI.Profiles, cfg.AI.Profiles) {
		changed = append(changed, "ai.profiles")
	}
	return changed
}
