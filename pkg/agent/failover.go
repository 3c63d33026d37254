package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jobsync/chatgateway/internal/observability"
	"github.com/jobsync/chatgateway/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultCooldown is the base time a failing provider is skipped for. It
// grows linearly with consecutive failures.
const DefaultCooldown = time.Minute

// Candidate is one model tried by a Failover.
type Candidate struct {
	Name     string
	Priority int // lower = higher priority
	Model    ChatModel
}

type candidateState struct {
	Candidate
	failures      int
	cooldownUntil time.Time
}

// Failover is a ChatModel that tries several models in priority order and
// returns the first non-empty answer.
type Failover struct {
	mu         sync.Mutex
	candidates []*candidateState
	cooldown   time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// FailoverOption configures a Failover.
type FailoverOption func(*Failover)

// WithCooldown sets the base cooldown applied after a failure. Zero disables
// cooldowns.
func WithCooldown(d time.Duration) FailoverOption {
	return func(f *Failover) {
		f.cooldown = d
	}
}

// WithFailoverLogger sets the failover logger.
func WithFailoverLogger(logger zerolog.Logger) FailoverOption {
	return func(f *Failover) {
		f.logger = logger
	}
}

// WithFailoverClock overrides the time source used for cooldowns.
func WithFailoverClock(now func() time.Time) FailoverOption {
	return func(f *Failover) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFailover wraps candidates, sorted by priority. Candidates with equal
// priority keep their given order.
func NewFailover(candidates []Candidate, opts ...FailoverOption) *Failover {
	observability.EnsureRegistered()

	f := &Failover{
		cooldown: DefaultCooldown,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	for _, c := range candidates {
		if c.Model == nil {
			continue
		}
		if c.Name == "" {
			c.Name = c.Model.Provider()
		}
		f.candidates = append(f.candidates, &candidateState{Candidate: c})
	}
	sort.SliceStable(f.candidates, func(i, j int) bool {
		return f.candidates[i].Priority < f.candidates[j].Priority
	})
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With().Str("component", "model-failover").Logger()

	return f
}

// Provider returns the provider name of the primary candidate.
func (f *Failover) Provider() string {
	if len(f.candidates) == 0 {
		return "none"
	}
	return f.candidates[0].Model.Provider()
}

// Send tries each available candidate in turn. Candidates cooling down are
// skipped unless every candidate is cooling down, in which case all are
// tried. Context cancellation stops the loop immediately.
func (f *Failover) Send(ctx context.Context, systemContext string, history []Message, message string) (string, error) {
	if len(f.candidates) == 0 {
		return "", errors.New("no chat models configured")
	}

	logger := tracing.LoggerFromContext(ctx, f.logger)
	var lastErr error

	for _, c := range f.order() {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		reply, err := f.call(ctx, c, systemContext, history, message)
		if err == nil {
			f.markSuccess(c)
			return reply, nil
		}

		lastErr = err
		f.markFailure(c)
		logger.Warn().
			Str("provider", c.Name).
			Err(err).
			Msg("Chat model failed")

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("all chat models failed: %w", lastErr)
}

func (f *Failover) call(ctx context.Context, c *candidateState, systemContext string, history []Message, message string) (reply string, err error) {
	ctx, span := tracing.StartSpan(ctx, "jobsync.agent", "agent.send",
		attribute.String("provider", c.Model.Provider()),
		attribute.String("candidate", c.Name),
		attribute.Int("history_turns", len(history)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		observability.RecordUpstreamCall(c.Model.Provider(), time.Since(start), err == nil)
		tracing.RecordError(span, err)
	}()

	return c.Model.Send(ctx, systemContext, history, message)
}

// order returns candidates not cooling down, or all of them when none is
// available.
func (f *Failover) order() []*candidateState {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	available := make([]*candidateState, 0, len(f.candidates))
	for _, c := range f.candidates {
		if now.Before(c.cooldownUntil) {
			observability.SetProviderCooldown(c.Name, true)
			continue
		}
		available = append(available, c)
	}
	if len(available) == 0 {
		return append(available, f.candidates...)
	}
	return available
}

func (f *Failover) markSuccess(c *candidateState) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c.failures = 0
	c.cooldownUntil = time.Time{}
	observability.SetProviderCooldown(c.Name, false)
}

func (f *Failover) markFailure(c *candidateState) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c.failures++
	if f.cooldown <= 0 {
		return
	}
	c.cooldownUntil = f.now().Add(f.cooldown * time.Duration(c.failures))
	observability.SetProviderCooldown(c.Name, true)
}
