package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jobsync/chatgateway/internal/observability"
	"github.com/jobsync/chatgateway/internal/tracing"
	"github.com/jobsync/chatgateway/pkg/orchestrator"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// handleWebSocket upgrades to a chat websocket. Each text frame is a chat
// request body; each reply frame mirrors the HTTP response plus its status
// code. Frames on one connection are answered in order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Server is shutting down"})
		return
	}

	sessionKey := strings.TrimSpace(r.Header.Get(headerSessionID))
	if sessionKey == "" {
		sessionKey = strings.TrimSpace(r.URL.Query().Get("session"))
	}
	clientID := sessionKey
	if clientID == "" {
		clientID = remoteHost(r)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to upgrade connection")
		return
	}
	conn.SetReadLimit(s.maxBodyBytes)

	id, err := gonanoid.New()
	if err != nil {
		id = tracing.NewRequestID()
	}
	now := time.Now()
	client := &Client{
		ID:           id,
		SessionKey:   sessionKey,
		ClientID:     clientID,
		Conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
		IPAddress:    remoteHost(r),
	}

	s.clients.Add(client)
	observability.AddWebsocketConnections(1)

	s.logger.Info().
		Str("connection_id", id).
		Str("session_key", sessionKey).
		Str("ip", client.IPAddress).
		Msg("Websocket client connected")

	// The upgrade hijacked the connection; serving inline keeps the request
	// context alive for the lifetime of the socket.
	s.handleClient(tracing.Detach(r.Context()), client)
}

func (s *Server) handleClient(ctx context.Context, client *Client) {
	defer func() {
		client.Conn.Close()
		s.clients.Remove(client.ID)
		observability.AddWebsocketConnections(-1)
		s.logger.Info().Str("connection_id", client.ID).Msg("Websocket client disconnected")
	}()

	for {
		msgType, frame, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Str("connection_id", client.ID).Msg("Websocket error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		s.clients.UpdateActivity(client.ID)

		reply := s.handleFrame(ctx, client, frame)
		if err := client.WriteJSON(reply); err != nil {
			s.logger.Warn().Err(err).Str("connection_id", client.ID).Msg("Failed to send reply")
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, client *Client, frame []byte) (reply WSReply) {
	ctx = tracing.WithRequestID(ctx, tracing.NewRequestID())
	ctx = tracing.WithClientID(ctx, client.ClientID)

	defer func() {
		if p := recover(); p != nil {
			frameLogger := tracing.LoggerFromContext(ctx, s.logger)
			frameLogger.Error().Interface("panic", p).Msg("Websocket frame panicked")
			reply = WSReply{Code: http.StatusInternalServerError, Error: orchestrator.InternalMessage}
		}
	}()

	if s.serviceLimiter != nil && !s.serviceLimiter.Allow(ctx, client.ClientID) {
		return WSReply{Code: http.StatusTooManyRequests, Error: orchestrator.RateLimitMessage}
	}

	message, reason := decodeChatRequest(frame)
	if reason != "" {
		return WSReply{Code: http.StatusBadRequest, Error: reason}
	}

	answer, err := s.chat.HandleMessage(ctx, orchestrator.Request{
		ClientID:   client.ClientID,
		SessionKey: client.SessionKey,
		Message:    message,
	})
	if err != nil {
		return WSReply{Code: statusFor(err), Error: orchestrator.PublicMessage(err)}
	}
	return WSReply{Code: http.StatusOK, Response: answer, Status: "success"}
}
