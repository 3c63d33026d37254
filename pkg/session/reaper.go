package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jobsync/chatgateway/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	DefaultSessionTimeout  = 30 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute

	archiveTimeout = 5 * time.Second
)

// ReaperConfig configures a Reaper.
type ReaperConfig struct {
	// Interval between sweeps. Ignored when Schedule is set.
	Interval time.Duration
	// Schedule is an optional standard five-field cron expression.
	Schedule string
	// Timeout is how long a session may stay idle before it is removed.
	Timeout  time.Duration
	Archiver Archiver
	Logger   zerolog.Logger
	Clock    func() time.Time
}

// SweepResult summarises one cleanup pass.
type SweepResult struct {
	Removed   int
	Remaining int
	Failed    int
}

// Reaper periodically evicts idle sessions from a Store.
type Reaper struct {
	store    *Store
	interval time.Duration
	schedule cron.Schedule
	timeout  time.Duration
	archiver Archiver
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	done    chan struct{} // closed when the current run stops
	running bool
}

// NewReaper creates a reaper for store. Zero durations fall back to the
// defaults.
func NewReaper(store *Store, cfg ReaperConfig) (*Reaper, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCleanupInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSessionTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	schedule := cron.Schedule(cron.Every(cfg.Interval))
	if cfg.Schedule != "" {
		parsed, err := cron.ParseStandard(cfg.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.Schedule, err)
		}
		schedule = parsed
	}

	return &Reaper{
		store:    store,
		interval: cfg.Interval,
		schedule: schedule,
		timeout:  cfg.Timeout,
		archiver: cfg.Archiver,
		logger:   cfg.Logger.With().Str("component", "session-reaper").Logger(),
		now:      cfg.Clock,
	}, nil
}

// Start schedules sweeps until Stop is called or ctx is done. A sweep that
// overruns the next tick causes that tick to be skipped.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("reaper already running")
	}

	adapter := cronLogger{logger: r.logger}
	c := cron.New(
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	c.Schedule(r.schedule, cron.FuncJob(func() {
		r.Sweep(r.now())
	}))
	c.Start()

	done := make(chan struct{})
	r.cron = c
	r.done = done
	r.running = true

	r.logger.Info().
		Dur("interval", r.interval).
		Dur("timeout", r.timeout).
		Msg("Session reaper started")

	go func() {
		select {
		case <-ctx.Done():
			r.stopRun(done)
		case <-done:
		}
	}()

	return nil
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	r.stopRun(done)
	return nil
}

// stopRun stops the run identified by done. It is a no-op when that run has
// already ended, so a stale context cannot stop a later run.
func (r *Reaper) stopRun(done chan struct{}) {
	r.mu.Lock()
	if !r.running || done == nil || r.done != done {
		r.mu.Unlock()
		return
	}
	c := r.cron
	r.cron = nil
	r.done = nil
	r.running = false
	close(done)
	r.mu.Unlock()

	<-c.Stop().Done()
	r.logger.Info().Msg("Session reaper stopped")
}

// IsRunning reports whether sweeps are scheduled.
func (r *Reaper) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Sweep removes every session idle for longer than the timeout at now. The
// key set is a snapshot; sessions created during the sweep wait for the next
// one. A failure on one key is counted and does not stop the pass.
func (r *Reaper) Sweep(now time.Time) SweepResult {
	start := time.Now()
	var result SweepResult

	for _, key := range r.store.Keys() {
		removed, ok, err := r.sweepKey(key, now)
		if err != nil {
			result.Failed++
			r.logger.Error().Err(err).Str("session_key", key).Msg("Failed to clean up session")
			continue
		}
		if !ok {
			continue
		}
		result.Removed++
		if err := r.archive(removed); err != nil {
			result.Failed++
			r.logger.Warn().Err(err).Str("session_key", key).Msg("Failed to archive transcript")
		}
	}

	result.Remaining = r.store.CountActive()
	observability.RecordReaperSweep(result.Removed, result.Remaining, result.Failed, time.Since(start))

	if result.Removed > 0 || result.Failed > 0 {
		r.logger.Info().
			Int("removed", result.Removed).
			Int("remaining", result.Remaining).
			Int("failed", result.Failed).
			Dur("duration", time.Since(start)).
			Msg("Session cleanup completed")
	} else {
		r.logger.Debug().Int("remaining", result.Remaining).Msg("Session cleanup found nothing to remove")
	}

	return result
}

func (r *Reaper) sweepKey(key string, now time.Time) (removed Session, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during cleanup: %v", p)
		}
	}()

	lastActive, found := r.store.LastActive(key)
	if !found || now.Sub(lastActive) <= r.timeout {
		return Session{}, false, nil
	}

	removed, ok = r.store.RemoveIfIdle(key, now, r.timeout)
	return removed, ok, nil
}

// archive hands a removed session to the archiver. The session is already
// gone from the store, so a failure loses only the transcript copy.
func (r *Reaper) archive(s Session) error {
	if r.archiver == nil || len(s.Turns) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	if err := r.archiver.Archive(ctx, s); err != nil {
		observability.RecordTranscriptArchived(false)
		return fmt.Errorf("archive session %s: %w", s.Key, err)
	}
	observability.RecordTranscriptArchived(true)
	return nil
}

// cronLogger routes cron's internal logging through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
