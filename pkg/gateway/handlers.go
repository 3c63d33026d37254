package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jobsync/chatgateway/internal/tracing"
	"github.com/jobsync/chatgateway/pkg/orchestrator"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: s.serviceName})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgInvalidJSON})
		return
	}

	message, reason := decodeChatRequest(body)
	if reason != "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: reason})
		return
	}

	sessionKey := strings.TrimSpace(r.Header.Get(headerSessionID))
	ctx := r.Context()
	if sessionKey != "" {
		ctx = tracing.WithSessionKey(ctx, sessionKey)
	}

	reply, err := s.chat.HandleMessage(ctx, orchestrator.Request{
		ClientID:   clientIdentity(r),
		SessionKey: sessionKey,
		Message:    message,
	})
	if err != nil {
		writeJSON(w, statusFor(err), ErrorResponse{Error: orchestrator.PublicMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: reply, Status: "success"})
}

// statusFor maps an orchestrator error kind to its HTTP status.
func statusFor(err error) int {
	switch orchestrator.KindOf(err) {
	case orchestrator.KindValidation:
		return http.StatusBadRequest
	case orchestrator.KindRateLimit:
		return http.StatusTooManyRequests
	case orchestrator.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
