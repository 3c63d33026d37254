package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jobsync/chatgateway/internal/observability"
	"github.com/jobsync/chatgateway/pkg/orchestrator"
	"github.com/jobsync/chatgateway/pkg/ratelimit"
	"github.com/rs/zerolog"
)

const (
	DefaultServiceName  = "JobSync AI Chatbot"
	DefaultMaxBodyBytes = 64 << 10
)

// ChatHandler answers chat messages.
type ChatHandler interface {
	HandleMessage(ctx context.Context, req orchestrator.Request) (string, error)
}

// Config holds server configuration
type Config struct {
	Host string
	// Port to listen on; 0 picks a free port.
	Port           int
	ServiceName    string
	Chat           ChatHandler
	ServiceLimiter ratelimit.Limiter
	AllowedOrigins []string
	MaxBodyBytes   int64
	Logger         zerolog.Logger
}

// Server is the HTTP and websocket front of the chat service
type Server struct {
	host           string
	port           int
	serviceName    string
	chat           ChatHandler
	serviceLimiter ratelimit.Limiter
	maxBodyBytes   int64
	handler        http.Handler
	server         *http.Server
	listener       net.Listener
	upgrader       websocket.Upgrader
	clients        *ClientRegistry
	logger         zerolog.Logger
	isShuttingDown bool
	shutdownMu     sync.RWMutex
}

// NewServer creates a new Server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Chat == nil {
		return nil, fmt.Errorf("chat handler is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	observability.EnsureRegistered()

	s := &Server{
		host:           cfg.Host,
		port:           cfg.Port,
		serviceName:    cfg.ServiceName,
		chat:           cfg.Chat,
		serviceLimiter: cfg.ServiceLimiter,
		maxBodyBytes:   cfg.MaxBodyBytes,
		clients:        NewClientRegistry(),
		logger:         cfg.Logger.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS policy is applied by middleware
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/chat/ws", s.handleWebSocket)
	mux.Handle("GET /metrics", observability.MetricsHandler())

	s.handler = chain(mux,
		withRequestID,
		withAccessLog(s.logger),
		withRecovery(s.logger),
		withSecurityHeaders,
		withCORS(cfg.AllowedOrigins),
		withServiceLimit(cfg.ServiceLimiter, s.logger),
	)

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Clients returns the websocket client registry.
func (s *Server) Clients() *ClientRegistry {
	return s.clients
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting gateway server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes websocket clients and gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")

	for _, client := range s.clients.GetAll() {
		_ = client.WriteJSON(WSReply{Code: http.StatusServiceUnavailable, Error: "Server is shutting down"})
		client.Conn.Close()
	}

	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}
