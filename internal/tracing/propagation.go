package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggerFromContext returns baseLogger enriched with the tracing fields found
// in ctx.
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)
	lc := baseLogger.With()

	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.RequestID != "" {
		lc = lc.Str("request_id", tc.RequestID)
	}
	if tc.SessionKey != "" {
		lc = lc.Str("session_key", tc.SessionKey)
	}
	if tc.ClientID != "" {
		lc = lc.Str("client_id", tc.ClientID)
	}

	return lc.Logger()
}

// Detach copies tracing values onto a fresh background context. Work that
// must outlive the originating request uses it so request cancellation does
// not reach it.
func Detach(ctx context.Context) context.Context {
	tc := FromContext(ctx)
	out := context.Background()

	if tc.TraceID != "" {
		out = WithTraceID(out, tc.TraceID)
	}
	if tc.RequestID != "" {
		out = WithRequestID(out, tc.RequestID)
	}
	if tc.SessionKey != "" {
		out = WithSessionKey(out, tc.SessionKey)
	}
	if tc.ClientID != "" {
		out = WithClientID(out, tc.ClientID)
	}

	return out
}
