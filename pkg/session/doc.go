// Package session holds per-client conversation state in memory.
//
// Invariants:
// - One live session per key; creation is atomic.
// - Turns are only ever appended, always as a (user, model) pair under the
//   session's own lock, so readers never see half an exchange.
// - LastActive never moves backwards while a session is live.
// - Operations on different keys never wait on each other's session locks.
// - Once the reaper deletes a session its history is gone; the next message
//   under the same key starts an empty session.
//
// Usage:
//
//	store := session.NewStore()
//	_ = store.AppendExchange("abc", "hello", "hi there", time.Now())
//	turns := store.SnapshotHistory("abc")
//	_ = turns
package session
