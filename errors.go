package agentctx

import "errors"

// Common errors.
var (
	// ErrInvalidConfig is returned when the session configuration is
	// invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCompactionInFlight is returned when a compaction is requested
	// while another one is running for the same session. Concurrent
	// compactions are rejected, not queued.
	ErrCompactionInFlight = errors.New("compaction already in flight")

	// ErrRetryExhausted is returned when a recoverable failure has been
	// retried up to the configured attempt limit.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrEntryNotFound is returned when an entry ID cannot be located
	// in the active history.
	ErrEntryNotFound = errors.New("entry not found")
)
