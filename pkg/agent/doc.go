// Package agent talks to the language-model backends that answer chat
// messages.
//
// Invariants:
// - A ChatModel call never touches session state; callers pass a history
//   snapshot and decide what to persist.
// - A blank model answer is an error (ErrEmptyResponse), never a reply.
// - Failover tries providers in priority order and skips providers that are
//   cooling down after recent failures.
//
// Usage:
//
//	model, _ := agent.NewGeminiProvider(ctx, agent.AuthProfile{APIKey: key})
//	reply, _ := model.Send(ctx, systemPrompt, history, "hello")
//	_ = reply
package agent
