package agent

import (
	"context"
	"errors"
)

// Conversation roles as stored in a session.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Message is one prior turn handed to a model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatModel answers a message given a system instruction and the prior
// turns of the conversation.
type ChatModel interface {
	Send(ctx context.Context, systemContext string, history []Message, message string) (string, error)

	// Provider returns the provider name
	Provider() string
}

// AuthProfile represents credentials and model selection for one provider.
type AuthProfile struct {
	ID          string  `json:"id"`
	Provider    string  `json:"provider"` // "gemini", "openai", "anthropic"
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model,omitempty"`
	BaseURL     string  `json:"base_url,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Priority    int     `json:"priority"`
}
