package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// admitScript checks the counter before incrementing so that rejected calls
// leave both the count and the expiry untouched.
var admitScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[2]) then
  return 0
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return 1
`)

// RedisWindow is a fixed-window limiter whose counters live in Redis, so
// several gateway processes can share one budget per client.
type RedisWindow struct {
	client  redis.UniversalClient
	prefix  string
	limit   atomic.Int64
	window  time.Duration
	timeout time.Duration
	logger  zerolog.Logger
}

// RedisOptions configures a RedisWindow.
type RedisOptions struct {
	Prefix  string
	Limit   int
	Window  time.Duration
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewRedisWindow creates a Redis-backed limiter.
func NewRedisWindow(client redis.UniversalClient, opts RedisOptions) (*RedisWindow, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if opts.Prefix == "" {
		opts.Prefix = "ratelimit"
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 250 * time.Millisecond
	}

	l := &RedisWindow{
		client:  client,
		prefix:  opts.Prefix,
		window:  opts.Window,
		timeout: opts.Timeout,
		logger:  opts.Logger.With().Str("component", "ratelimit-redis").Logger(),
	}
	l.limit.Store(int64(opts.Limit))
	return l, nil
}

// Allow admits the request if key has budget left. When Redis cannot be
// reached the request is admitted and the failure logged.
func (l *RedisWindow) Allow(ctx context.Context, key string) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	admitted, err := admitScript.Run(
		ctx,
		l.client,
		[]string{l.key(key)},
		l.window.Milliseconds(),
		l.limit.Load(),
	).Int()
	if err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("Rate limit check failed, admitting request")
		return true
	}

	return admitted == 1
}

// SetLimit changes the per-window cap.
func (l *RedisWindow) SetLimit(limit int) {
	l.limit.Store(int64(limit))
}

// Reset clears the counter for key.
func (l *RedisWindow) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit for %s: %w", key, err)
	}
	return nil
}

func (l *RedisWindow) key(key string) string {
	return l.prefix + ":" + key
}
