package orchestrator

import (
	"errors"
	"fmt"
)

// Kind classifies a failed exchange.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindRateLimit  Kind = "rate_limit_exceeded"
	KindUpstream   Kind = "upstream_unavailable"
	KindInternal   Kind = "internal_error"
)

// Messages shown to callers when the cause must not leak.
const (
	RateLimitMessage = "Rate limit exceeded. Please try again later."
	UpstreamMessage  = "I apologize, but I'm experiencing technical difficulties. Please try again in a moment."
	InternalMessage  = "Internal server error"
)

// Error is returned by HandleMessage for every failure.
type Error struct {
	Kind   Kind
	Reason string // safe to show to the caller for validation errors
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Reason != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PublicMessage returns the text a caller may see. Only validation errors
// carry their specific reason.
func (e *Error) PublicMessage() string {
	switch e.Kind {
	case KindValidation:
		return e.Reason
	case KindRateLimit:
		return RateLimitMessage
	case KindUpstream:
		return UpstreamMessage
	default:
		return InternalMessage
	}
}

// KindOf returns the kind of err. Errors that did not come from the
// orchestrator count as internal; nil has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindInternal
}

// PublicMessage returns the caller-safe text for any error.
func PublicMessage(err error) string {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.PublicMessage()
	}
	return InternalMessage
}

func validationError(reason string) *Error {
	return &Error{Kind: KindValidation, Reason: reason}
}

func upstreamError(err error) *Error {
	return &Error{Kind: KindUpstream, Err: err}
}

func internalError(err error) *Error {
	return &Error{Kind: KindInternal, Err: err}
}
