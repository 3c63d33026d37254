// Package validation checks and cleans raw chat input before it reaches a
// session or the model backend.
//
// Invariants:
// - Validation never panics and never returns an error value; failures are
//   reported as a human-readable reason.
// - Sanitize is idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
// - Lengths are counted in characters (runes), not bytes.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMinLength = 2
	DefaultMaxLength = 1000
)

// Validator enforces length bounds on chat messages. It holds no mutable
// state and is safe for concurrent use.
type Validator struct {
	MinLength int
	MaxLength int
}

// New creates a Validator. Non-positive bounds fall back to the defaults.
func New(minLength, maxLength int) *Validator {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Validator{
		MinLength: minLength,
		MaxLength: maxLength,
	}
}

// Default returns a Validator with the default bounds.
func Default() *Validator {
	return New(DefaultMinLength, DefaultMaxLength)
}

// Validate checks an arbitrary decoded value. Anything other than a string
// is rejected.
func (v *Validator) Validate(raw any) (bool, string) {
	s, ok := raw.(string)
	if !ok {
		return false, "Message must be a string."
	}
	return v.ValidateString(s)
}

// ValidateString checks a message after trimming surrounding whitespace.
func (v *Validator) ValidateString(s string) (bool, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, "Message cannot be empty."
	}

	n := utf8.RuneCountInString(s)
	if n < v.MinLength {
		return false, fmt.Sprintf("Message must be at least %d characters.", v.MinLength)
	}
	if n > v.MaxLength {
		return false, fmt.Sprintf("Message must be less than %d characters.", v.MaxLength)
	}
	return true, "Valid message."
}

// Sanitize removes control characters and collapses whitespace runs into a
// single space.
func Sanitize(s string) string {
	stripped := strings.Map(func(r rune) rune {
		if isControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(stripped), " ")
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
