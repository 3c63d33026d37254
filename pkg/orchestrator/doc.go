// Package orchestrator runs one chat exchange end to end: admission,
// validation, history snapshot, the model call and the final append.
//
// Invariants:
// - Rate-limit and validation failures return before the session store or
//   the model is touched.
// - No store lock is held while the model is called.
// - A failed or empty model answer leaves the session unchanged.
// - Callers only ever see an *Error; transport errors stay in the logs.
//
// Usage:
//
//	o, _ := orchestrator.New(orchestrator.Config{Store: store, Limiter: chat, Model: model})
//	reply, err := o.HandleMessage(ctx, orchestrator.Request{SessionKey: "abc", Message: "hello"})
//	if orchestrator.KindOf(err) == orchestrator.KindRateLimit {
//		// back off
//	}
//	_ = reply
package orchestrator
