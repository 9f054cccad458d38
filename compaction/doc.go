// Package compaction decides when a conversation history must shrink,
// where it is safe to cut, and how to replace the discarded region with
// a compact structured summary.
//
// The package operates on the append-only entry history defined in
// package types. Compaction never mutates or deletes entries: it
// produces a Result that the caller persists as a new compaction
// marker, after which the active context is rebuilt from the marker
// plus the entries kept verbatim.
//
// # Components
//
//   - EstimateTokens: pure, deterministic per-entry token estimate
//     using a conservative 4-characters-per-token heuristic.
//   - FindCutPoint: walks the history backward and picks where the
//     retained recent window begins, respecting turn boundaries.
//   - Summarizer: generates the structured summary (and, for split
//     turns, a separate turn-prefix summary) through a
//     CompletionService.
//   - Compactor: the facade composing the above. PrepareCompaction is
//     the dry run; Compact executes.
//
// # Turn boundaries
//
// A turn runs from a user-equivalent entry through the assistant and
// tool-result entries that follow it. Cuts land on turn boundaries
// whenever the budget allows; when a single turn alone exceeds the
// retention budget the cut splits it and the discarded prefix gets its
// own summary, appended under a delimited heading.
//
// # Token counting
//
// Estimation is a character heuristic by design. It is deterministic,
// needs no I/O, and is conservative enough for cut decisions; the
// numbers are not byte-exact for any particular tokenizer. Unknown
// entry kinds estimate to zero so a future kind cannot crash the
// estimator; set UnknownKindFunc to surface them.
//
// # Concurrency
//
// A Compactor runs each compaction to completion as a single logical
// unit. The only internal parallelism is issuing the history summary
// and the turn-prefix summary concurrently when both are needed.
// Cancellation is cooperative through the context passed to Compact;
// a cancelled compaction commits nothing.
package compaction
