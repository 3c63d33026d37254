package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingArchiver struct {
	mu       sync.Mutex
	sessions []Session
	err      error
	failKey  string
}

func (a *recordingArchiver) Archive(_ context.Context, s Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if a.failKey != "" && s.Key == a.failKey {
		return errors.New("write failed")
	}
	a.sessions = append(a.sessions, s)
	return nil
}

func (a *recordingArchiver) archived() []Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Session(nil), a.sessions...)
}

func TestNewReaper_Defaults(t *testing.T) {
	r, err := NewReaper(NewStore(), ReaperConfig{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, DefaultCleanupInterval, r.interval)
	assert.Equal(t, DefaultSessionTimeout, r.timeout)

	_, err = NewReaper(nil, ReaperConfig{})
	assert.Error(t, err)

	_, err = NewReaper(NewStore(), ReaperConfig{Schedule: "not a cron"})
	assert.Error(t, err)

	_, err = NewReaper(NewStore(), ReaperConfig{Schedule: "*/5 * * * *"})
	assert.NoError(t, err)
}

func TestReaper_SweepRemovesOnlyIdle(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(WithClock(clock.Now))
	archiver := &recordingArchiver{}

	r, err := NewReaper(store, ReaperConfig{
		Timeout:  30 * time.Minute,
		Archiver: archiver,
		Clock:    clock.Now,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	start := clock.Now()
	require.NoError(t, store.AppendExchange("stale", "q", "a", start))
	require.NoError(t, store.AppendExchange("fresh", "q", "a", start.Add(25*time.Minute)))

	result := r.Sweep(start.Add(31 * time.Minute))

	assert.Equal(t, SweepResult{Removed: 1, Remaining: 1}, result)
	assert.Equal(t, []string{"fresh"}, store.Keys())

	archived := archiver.archived()
	require.Len(t, archived, 1)
	assert.Equal(t, "stale", archived[0].Key)
	assert.Len(t, archived[0].Turns, 2)
}

func TestReaper_SessionTouchedBeforeSweepSurvives(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(WithClock(clock.Now))

	r, err := NewReaper(store, ReaperConfig{Timeout: 30 * time.Minute, Logger: zerolog.Nop()})
	require.NoError(t, err)

	start := clock.Now()
	require.NoError(t, store.AppendExchange("k1", "q", "a", start))
	require.NoError(t, store.AppendExchange("k1", "q2", "a2", start.Add(29*time.Minute)))

	result := r.Sweep(start.Add(31 * time.Minute))

	assert.Equal(t, 0, result.Removed)
	assert.Len(t, store.SnapshotHistory("k1"), 4)
}

func TestReaper_SweepEmptyStore(t *testing.T) {
	r, err := NewReaper(NewStore(), ReaperConfig{Logger: zerolog.Nop()})
	require.NoError(t, err)

	assert.Equal(t, SweepResult{}, r.Sweep(time.Now()))
}

func TestReaper_ArchiveFailureDoesNotKeepSession(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(WithClock(clock.Now))
	archiver := &recordingArchiver{err: errors.New("disk full")}

	r, err := NewReaper(store, ReaperConfig{Timeout: time.Minute, Archiver: archiver, Logger: zerolog.Nop()})
	require.NoError(t, err)

	require.NoError(t, store.AppendExchange("k1", "q", "a", clock.Now()))
	result := r.Sweep(clock.Now().Add(time.Hour))

	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, store.CountActive())
}

func TestReaper_OneFailureDoesNotAbortSweep(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(WithClock(clock.Now))
	archiver := &recordingArchiver{failKey: "k2"}

	r, err := NewReaper(store, ReaperConfig{Timeout: time.Minute, Archiver: archiver, Logger: zerolog.Nop()})
	require.NoError(t, err)

	for _, key := range []string{"k1", "k2", "k3"} {
		require.NoError(t, store.AppendExchange(key, "q", "a", clock.Now()))
	}

	result := r.Sweep(clock.Now().Add(time.Hour))

	assert.Equal(t, SweepResult{Removed: 3, Remaining: 0, Failed: 1}, result)
	assert.Equal(t, 0, store.CountActive())

	var keys []string
	for _, s := range archiver.archived() {
		keys = append(keys, s.Key)
	}
	assert.ElementsMatch(t, []string{"k1", "k3"}, keys)
}

func TestReaper_StartStop(t *testing.T) {
	store := NewStore()
	r, err := NewReaper(store, ReaperConfig{
		Interval: time.Second,
		Timeout:  time.Millisecond,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, store.AppendExchange("k1", "q", "a", time.Now().Add(-time.Hour)))

	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.IsRunning())
	assert.Error(t, r.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return store.CountActive() == 0
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, r.Stop())
	assert.False(t, r.IsRunning())
	require.NoError(t, r.Stop())
}

func TestReaper_EarlierContextDoesNotStopLaterRun(t *testing.T) {
	r, err := NewReaper(NewStore(), ReaperConfig{Interval: time.Hour, Logger: zerolog.Nop()})
	require.NoError(t, err)

	ctx1, cancel1 := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx1))
	require.NoError(t, r.Stop())

	require.NoError(t, r.Start(context.Background()))
	cancel1()

	assert.Never(t, func() bool {
		return !r.IsRunning()
	}, 200*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, r.Stop())
	assert.False(t, r.IsRunning())
}

func TestReaper_StopsWithContext(t *testing.T) {
	r, err := NewReaper(NewStore(), ReaperConfig{Interval: time.Hour, Logger: zerolog.Nop()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		return !r.IsRunning()
	}, time.Second, 10*time.Millisecond)
}
