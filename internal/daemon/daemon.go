package daemon

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jobsync/chatgateway/internal/config"
	"github.com/jobsync/chatgateway/internal/logger"
	"github.com/jobsync/chatgateway/internal/observability"
	"github.com/jobsync/chatgateway/internal/tracing"
	"github.com/jobsync/chatgateway/pkg/agent"
	"github.com/jobsync/chatgateway/pkg/gateway"
	"github.com/jobsync/chatgateway/pkg/orchestrator"
	"github.com/jobsync/chatgateway/pkg/ratelimit"
	"github.com/jobsync/chatgateway/pkg/session"
	"github.com/jobsync/chatgateway/pkg/validation"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Version is reported in telemetry and by the CLI.
const Version = "0.1.0"

const shutdownTimeout = 10 * time.Second

// Daemon runs the chat gateway service
type Daemon struct {
	config *config.Config
	logger *logger.Logger
	loader *config.Loader

	// Core modules
	store          *session.Store
	archive        *session.SQLiteArchive
	reaper         *session.Reaper
	chatLimiter    adjustableLimiter
	serviceLimiter adjustableLimiter
	redisClient    *redis.Client
	model          agent.ChatModel
	orchestrator   *orchestrator.Orchestrator

	// Services
	gatewayServer *gateway.Server
	watcher       *config.Watcher

	// Internal
	eventLoop *EventLoop
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// adjustableLimiter is a limiter whose budget can change at runtime.
type adjustableLimiter interface {
	ratelimit.Limiter
	SetLimit(limit int)
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithConfigLoader enables hot reload of the config file behind loader.
func WithConfigLoader(loader *config.Loader) Option {
	return func(d *Daemon) {
		d.loader = loader
	}
}

var newChatModel = func(ctx context.Context, profiles []config.AIProfile, log zerolog.Logger) (agent.ChatModel, error) {
	factory := &agent.ProviderFactory{}
	failover, err := factory.NewFromProfiles(ctx, toAuthProfiles(profiles), agent.WithFailoverLogger(log))
	if err != nil {
		return nil, err
	}
	return failover, nil
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()

	d := &Daemon{
		config: cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(d)
	}

	if cfg.Telemetry.Enabled {
		err := tracing.InitOpenTelemetry(tracing.Options{
			ServiceName:    cfg.Service.Name,
			ServiceVersion: Version,
			SampleRatio:    cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Msg("Tracing initialized successfully")
		}
	}

	for _, warning := range config.NewValidator().ValidateConfig(cfg) {
		log.Warn().Err(warning).Msg("Configuration warning")
	}

	if err := d.initializeCoreModules(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// abort releases whatever New managed to open before failing.
func (d *Daemon) abort() {
	d.cancel()
	if d.archive != nil {
		_ = d.archive.Close()
	}
	if d.redisClient != nil {
		_ = d.redisClient.Close()
	}
	if d.tracingEnabled {
		_ = tracing.ShutdownOpenTelemetry(context.Background())
		d.tracingEnabled = false
	}
}

// initializeCoreModules initializes all core modules
func (d *Daemon) initializeCoreModules() error {
	zl := d.logger.GetZerolog()

	d.store = session.NewStore(session.WithLogger(zl))
	d.logger.Info().Msg("Session store initialized")

	reaperCfg := session.ReaperConfig{
		Interval: d.config.Session.CleanupInterval,
		Schedule: d.config.Session.CleanupSchedule,
		Timeout:  d.config.Session.Timeout,
		Logger:   zl,
	}
	if d.config.Session.Archive.Enabled {
		archive, err := session.NewSQLiteArchive(d.config.Session.Archive.Path)
		if err != nil {
			return fmt.Errorf("failed to open transcript archive: %w", err)
		}
		d.archive = archive
		reaperCfg.Archiver = archive
		d.logger.Info().Str("path", d.config.Session.Archive.Path).Msg("Transcript archive opened")
	}

	reaper, err := session.NewReaper(d.store, reaperCfg)
	if err != nil {
		return fmt.Errorf("failed to create session reaper: %w", err)
	}
	d.reaper = reaper
	d.logger.Info().
		Dur("timeout", d.config.Session.Timeout).
		Dur("interval", d.config.Session.CleanupInterval).
		Str("schedule", d.config.Session.CleanupSchedule).
		Msg("Session reaper initialized")

	d.chatLimiter, err = d.newLimiter("chat", d.config.RateLimit.ChatPerMinute)
	if err != nil {
		return fmt.Errorf("failed to create chat limiter: %w", err)
	}
	d.serviceLimiter, err = d.newLimiter("service", d.config.RateLimit.ServicePerMinute)
	if err != nil {
		return fmt.Errorf("failed to create service limiter: %w", err)
	}
	d.logger.Info().
		Str("backend", d.limiterBackend()).
		Int("chat_per_window", d.config.RateLimit.ChatPerMinute).
		Int("service_per_window", d.config.RateLimit.ServicePerMinute).
		Dur("window", d.config.RateLimit.Window).
		Msg("Rate limiters initialized")

	model, err := newChatModel(d.ctx, d.config.AI.Profiles, zl)
	if err != nil {
		return fmt.Errorf("failed to create chat model: %w", err)
	}
	d.model = model
	d.logger.Info().Str("provider", model.Provider()).Int("profiles", len(d.config.AI.Profiles)).Msg("Chat model initialized")

	orch, err := orchestrator.New(orchestrator.Config{
		Store:     d.store,
		Limiter:   ratelimit.Named("chat", d.chatLimiter),
		Validator: validation.New(d.config.Chat.MinLength, d.config.Chat.MaxLength),
		Model:     d.model,
		Settings:  orchestratorSettings(d.config),
		Logger:    zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	d.orchestrator = orch
	d.logger.Info().Msg("Orchestrator initialized")

	return nil
}

// initializeServices initializes the network-facing services
func (d *Daemon) initializeServices() error {
	server, err := gateway.NewServer(gateway.Config{
		Host:           d.config.Gateway.Host,
		Port:           d.config.Gateway.Port,
		ServiceName:    d.config.Service.Name,
		Chat:           d.orchestrator,
		ServiceLimiter: ratelimit.Named("service", d.serviceLimiter),
		AllowedOrigins: d.config.Gateway.AllowedOrigins,
		MaxBodyBytes:   d.config.Gateway.MaxBodyBytes,
		Logger:         d.logger.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gatewayServer = server
	d.logger.Info().Int("port", d.config.Gateway.Port).Msg("Gateway server initialized")

	return nil
}

func (d *Daemon) limiterBackend() string {
	if d.config.RateLimit.Backend == "redis" {
		return "redis"
	}
	return "memory"
}

func (d *Daemon) newLimiter(name string, limit int) (adjustableLimiter, error) {
	rl := d.config.RateLimit
	if d.limiterBackend() == "memory" {
		return ratelimit.NewFixedWindow(limit, rl.Window), nil
	}

	if d.redisClient == nil {
		d.redisClient = redis.NewClient(&redis.Options{
			Addr:     rl.RedisAddr,
			Password: rl.RedisPassword,
			DB:       rl.RedisDB,
		})
	}
	return ratelimit.NewRedisWindow(d.redisClient, ratelimit.RedisOptions{
		Prefix: rl.RedisPrefix + ":" + name,
		Limit:  limit,
		Window: rl.Window,
		Logger: d.logger.GetZerolog(),
	})
}

// Start starts the daemon service
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Starting chat gateway daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.gatewayServer.Start(); err != nil {
		_ = d.lifecycle.Stop()
		d.setStopped()
		return fmt.Errorf("failed to start gateway server: %w", err)
	}
	logger.Info().Str("addr", d.gatewayServer.Addr()).Msg("Gateway server started")

	if err := d.reaper.Start(d.ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to start session reaper")
	} else {
		logger.Info().Msg("Session reaper started")
	}

	for _, l := range []adjustableLimiter{d.chatLimiter, d.serviceLimiter} {
		if fw, ok := l.(*ratelimit.FixedWindow); ok {
			fw.StartPruning(d.ctx, d.config.RateLimit.Window)
		}
	}

	if d.loader != nil {
		watcher, err := config.NewWatcher(d.loader, d.logger.GetZerolog(), d.ApplyConfig)
		if err != nil {
			logger.Warn().Err(err).Msg("Config hot reload disabled")
		} else {
			d.watcher = watcher
			logger.Info().Str("path", d.loader.GetConfigPath()).Msg("Config watcher started")
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	logger.Info().Msg("Daemon started successfully")

	return nil
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop stops the daemon service gracefully
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping chat gateway daemon")

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop config watcher")
		}
	}

	if d.gatewayServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := d.gatewayServer.Stop(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop gateway server")
		}
		cancel()
	}

	if d.reaper != nil && d.reaper.IsRunning() {
		if err := d.reaper.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop session reaper")
		}
	}

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("All goroutines stopped")
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("Timeout waiting for goroutines to stop")
	}

	if d.archive != nil {
		if err := d.archive.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close transcript archive")
		}
	}

	if d.redisClient != nil {
		if err := d.redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close redis client")
		}
	}

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	if d.tracingEnabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		cancel()
		d.tracingEnabled = false
	}

	logger.Info().Msg("Daemon stopped successfully")

	return nil
}

// Run starts the daemon and blocks until ctx is done, then stops it.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	d.logger.Info().Msg("Shutdown requested")

	return d.Stop()
}

// Status is a point-in-time view of the daemon
type Status struct {
	Running        bool
	Uptime         time.Duration
	StartTime      time.Time
	Addr           string
	ActiveSessions int
	Clients        int
	Provider       string
	PID            int
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:        d.running,
		ActiveSessions: d.store.CountActive(),
		Clients:        d.gatewayServer.Clients().Count(),
		Provider:       d.model.Provider(),
		PID:            os.Getpid(),
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
		status.Addr = d.gatewayServer.Addr()
	}

	return status
}

// GetConfig returns the configuration currently in effect
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetSessionStore returns the session store
func (d *Daemon) GetSessionStore() *session.Store {
	return d.store
}

// GetReaper returns the session reaper
func (d *Daemon) GetReaper() *session.Reaper {
	return d.reaper
}

// GetOrchestrator returns the orchestrator
func (d *Daemon) GetOrchestrator() *orchestrator.Orchestrator {
	return d.orchestrator
}

// GetGatewayServer returns the gateway server
func (d *Daemon) GetGatewayServer() *gateway.Server {
	return d.gatewayServer
}

func orchestratorSettings(cfg *config.Config) orchestrator.Settings {
	return orchestrator.Settings{
		SystemPrompt:    cfg.Chat.SystemPrompt,
		UpstreamTimeout: cfg.Chat.UpstreamTimeout,
	}
}

func toAuthProfiles(profiles []config.AIProfile) []agent.AuthProfile {
	out := make([]agent.AuthProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, agent.AuthProfile{
			ID:          p.ID,
			Provider:    p.Provider,
			APIKey:      p.APIKey,
			Model:       p.Model,
			BaseURL:     p.BaseURL,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
			Priority:    p.Priority,
		})
	}
	return out
}
