package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeChatRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message interface{}
		reason  string
	}{
		{"string message", `{"message":"hello"}`, "hello", ""},
		{"number message passes through", `{"message":7}`, float64(7), ""},
		{"null message passes through", `{"message":null}`, nil, ""},
		{"extra fields ignored", `{"message":"hi","lang":"en"}`, "hi", ""},
		{"missing message", `{}`, nil, msgMessageRequired},
		{"empty body", ``, nil, msgMessageRequired},
		{"string body", `"hello"`, nil, msgInvalidBody},
		{"broken json", `{"message"`, nil, msgInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			message, reason := decodeChatRequest([]byte(tt.body))
			assert.Equal(t, tt.reason, reason)
			assert.Equal(t, tt.message, message)
		})
	}
}
