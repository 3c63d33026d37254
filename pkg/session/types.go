package session

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxKeyLength bounds session keys supplied by clients.
const MaxKeyLength = 256

// ErrInvalidKey is returned for empty, oversized or non-printable keys.
var ErrInvalidKey = errors.New("invalid session key")

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is a single message in a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Session is a point-in-time copy of one conversation.
type Session struct {
	Key        string    `json:"key"`
	Turns      []Turn    `json:"turns"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// IdleFor returns how long the session has been inactive at now.
func (s Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActive)
}

// ValidateKey reports whether key can name a session.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if utf8.RuneCountInString(key) > MaxKeyLength {
		return ErrInvalidKey
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidKey
		}
	}
	return nil
}
