// Package ratelimit provides per-client admission control over fixed
// counting windows.
//
// Invariants:
// - A key's window starts at its first admitted request and resets once
//   window has elapsed; rejected requests never move the window start.
// - At most limit requests are admitted per key per window, including under
//   concurrent calls for the same key.
// - Different keys are tracked independently.
//
// The gateway runs two limiters: a coarse service-wide one ahead of routing
// and a tighter one for the chat endpoint. A request must pass both.
package ratelimit
