package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jobsync/chatgateway/internal/observability"
	"github.com/jobsync/chatgateway/internal/tracing"
	"github.com/jobsync/chatgateway/pkg/agent"
	"github.com/jobsync/chatgateway/pkg/ratelimit"
	"github.com/jobsync/chatgateway/pkg/session"
	"github.com/jobsync/chatgateway/pkg/validation"
	"github.com/rs/zerolog"
)

const (
	// DefaultSessionKey is used when a request carries no session id.
	DefaultSessionKey = "default"

	DefaultUpstreamTimeout = 30 * time.Second
)

// Settings are the hot-reloadable parts of the orchestrator.
type Settings struct {
	SystemPrompt    string
	UpstreamTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.SystemPrompt == "" {
		s.SystemPrompt = DefaultSystemPrompt
	}
	if s.UpstreamTimeout <= 0 {
		s.UpstreamTimeout = DefaultUpstreamTimeout
	}
	return s
}

// Config holds the collaborators of an Orchestrator.
type Config struct {
	Store     *session.Store
	Limiter   ratelimit.Limiter // optional; nil admits everything
	Validator *validation.Validator
	Model     agent.ChatModel
	Settings  Settings
	Logger    zerolog.Logger
	Clock     func() time.Time
}

// Request is one inbound chat message.
type Request struct {
	// ClientID identifies the caller for rate limiting. Defaults to the
	// session key.
	ClientID   string
	SessionKey string
	// Message is the decoded "message" field; it may be any JSON type.
	Message any
}

// Orchestrator handles chat exchanges.
type Orchestrator struct {
	store     *session.Store
	limiter   ratelimit.Limiter
	model     agent.ChatModel
	validator atomic.Pointer[validation.Validator]
	settings  atomic.Pointer[Settings]
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Model == nil {
		return nil, errors.New("chat model is required")
	}
	if cfg.Validator == nil {
		cfg.Validator = validation.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	observability.EnsureRegistered()

	o := &Orchestrator{
		store:   cfg.Store,
		limiter: cfg.Limiter,
		model:   cfg.Model,
		logger:  cfg.Logger.With().Str("component", "orchestrator").Logger(),
		now:     cfg.Clock,
	}
	o.validator.Store(cfg.Validator)
	settings := cfg.Settings.withDefaults()
	o.settings.Store(&settings)

	return o, nil
}

// Settings returns the settings currently in effect.
func (o *Orchestrator) Settings() Settings {
	return *o.settings.Load()
}

// UpdateSettings replaces the settings used by subsequent requests.
func (o *Orchestrator) UpdateSettings(s Settings) {
	s = s.withDefaults()
	o.settings.Store(&s)
	o.logger.Info().Dur("upstream_timeout", s.UpstreamTimeout).Msg("Orchestrator settings updated")
}

// UpdateValidator replaces the validator used by subsequent requests.
func (o *Orchestrator) UpdateValidator(v *validation.Validator) {
	if v == nil {
		return
	}
	o.validator.Store(v)
	o.logger.Info().
		Int("min_length", v.MinLength).
		Int("max_length", v.MaxLength).
		Msg("Message validator updated")
}

// HandleMessage admits, validates and answers one message, then records the
// exchange in the caller's session. Every failure is returned as *Error.
func (o *Orchestrator) HandleMessage(ctx context.Context, req Request) (reply string, err error) {
	sessionKey := req.SessionKey
	if sessionKey == "" {
		sessionKey = DefaultSessionKey
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = sessionKey
	}

	ctx = tracing.WithSessionKey(ctx, sessionKey)
	ctx = tracing.WithClientID(ctx, clientID)
	ctx, span := tracing.StartSpan(ctx, "jobsync.orchestrator", "orchestrator.handle_message")
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, o.logger)

	defer func() {
		if p := recover(); p != nil {
			reply = ""
			err = internalError(fmt.Errorf("panic: %v", p))
			logger.Error().Interface("panic", p).Msg("Chat request panicked")
		}
		if err != nil {
			tracing.RecordError(span, err)
			observability.RecordChatRequest(string(KindOf(err)))
			return
		}
		observability.RecordChatRequest("success")
	}()

	if o.limiter != nil && !o.limiter.Allow(ctx, clientID) {
		logger.Info().Msg("Chat rate limit exceeded")
		return "", &Error{Kind: KindRateLimit}
	}

	message, verr := o.validate(req.Message)
	if verr != nil {
		logger.Debug().Str("reason", verr.Reason).Msg("Chat message rejected")
		return "", verr
	}
	if err := session.ValidateKey(sessionKey); err != nil {
		logger.Debug().Msg("Invalid session key")
		return "", validationError("Invalid session ID.")
	}

	settings := o.Settings()
	history := toMessages(o.store.SnapshotHistory(sessionKey))

	answer, uerr := o.callModel(ctx, settings, history, message)
	if uerr != nil {
		logger.Warn().
			Err(uerr).
			Str("provider", o.model.Provider()).
			Int("history_turns", len(history)).
			Msg("Upstream model call failed")
		return "", upstreamError(uerr)
	}

	if err := o.store.AppendExchange(sessionKey, message, answer, o.now()); err != nil {
		logger.Error().Err(err).Msg("Failed to record exchange")
		return "", internalError(fmt.Errorf("failed to record exchange: %w", err))
	}

	logger.Debug().Int("history_turns", len(history)+2).Msg("Chat exchange completed")
	return answer, nil
}

// validate checks the raw value, sanitizes it and checks the result again,
// since sanitizing can shorten a message below the minimum.
func (o *Orchestrator) validate(raw any) (string, *Error) {
	v := o.validator.Load()

	if ok, reason := v.Validate(raw); !ok {
		return "", validationError(reason)
	}

	message := validation.Sanitize(raw.(string))
	if ok, reason := v.ValidateString(message); !ok {
		return "", validationError(reason)
	}
	return message, nil
}

func (o *Orchestrator) callModel(ctx context.Context, settings Settings, history []agent.Message, message string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, settings.UpstreamTimeout)
	defer cancel()

	answer, err := o.model.Send(callCtx, settings.SystemPrompt, history, message)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("model call timed out after %s: %w", settings.UpstreamTimeout, err)
		}
		return "", err
	}
	if err := callCtx.Err(); err != nil {
		// The model answered after the deadline or after the caller left.
		return "", fmt.Errorf("model call abandoned: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", agent.ErrEmptyResponse
	}
	return answer, nil
}

func toMessages(turns []session.Turn) []agent.Message {
	messages := make([]agent.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, agent.Message{Role: string(t.Role), Content: t.Content})
	}
	return messages
}
