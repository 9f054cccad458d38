// Package agentctx manages the conversation context of a long-running,
// model-driven coding agent.
//
// An agent accumulates an unbounded history of turns: user input, model
// output, tool invocations and their results. Every request to the
// model must fit inside a fixed token budget. This package decides when
// the accumulated history must shrink, where it is safe to cut, and how
// to replace the discarded portion with a compact structured summary,
// without corrupting turn structure or losing operational facts such as
// which files were read and written.
//
// The root package carries the session-side policy: the threshold and
// overflow compaction triggers, the exponential-backoff retry
// controller for recoverable request failures, and the Session that
// composes them over an append-only history store. The compaction
// engine itself lives in the compaction subpackage; the entry data
// model in types; store implementations in history and its
// subpackages.
//
// # Quick start
//
//	store := history.NewMemoryStore()
//	svc := compaction.NewAnthropicServiceWithKey(os.Getenv("ANTHROPIC_API_KEY"))
//
//	session, err := agentctx.NewSession(store, svc, agentctx.Config{
//	    SessionID:     "session-1",
//	    Model:         "claude-3-5-haiku-20241022",
//	    ContextWindow: 200000,
//	    Settings:      compaction.DefaultSettings(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// After every completed model turn, hand the assistant entry (and any
// error) to the session:
//
//	outcome, err := session.ObserveTurn(ctx, entry, turnErr)
//	switch outcome.Action {
//	case agentctx.ActionResubmit:
//	    // overflow compaction succeeded, resubmit the request now
//	case agentctx.ActionRetry:
//	    session.Retry().Wait(ctx, outcome.RetryDelay)
//	    // then resubmit
//	}
//
// Compaction never mutates persisted history: it appends a marker entry
// and the active in-memory context is rebuilt from the marker plus the
// entries kept verbatim.
package agentctx
