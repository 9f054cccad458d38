package compaction

import (
	"errors"
	"fmt"
)

// Sentinel errors for compaction operations.
var (
	// ErrInvalidSettings indicates invalid compaction settings.
	ErrInvalidSettings = errors.New("invalid compaction settings")

	// ErrDisabled indicates compaction is disabled by settings.
	ErrDisabled = errors.New("compaction disabled")

	// ErrAlreadyCompacted indicates the most recent entry is already a
	// compaction marker. This is a terminal no-op state: callers must
	// handle it, not retry.
	ErrAlreadyCompacted = errors.New("already compacted")

	// ErrNothingToCompact indicates the active range holds no entries
	// that could be discarded.
	ErrNothingToCompact = errors.New("nothing to compact")

	// ErrSummarizationFailed indicates the summary completion failed.
	ErrSummarizationFailed = errors.New("summarization failed")
)

// Error provides structured context for compaction failures.
type Error struct {
	// Op is the operation that failed (e.g. "Compact", "Summarize").
	Op string

	// SessionID is the session, when known.
	SessionID string

	// Err is the underlying error.
	Err error

	// Context holds additional key-value pairs for debugging.
	Context map[string]any
}

// Error returns a formatted error message.
func (e *Error) Error() string {
	msg := fmt.Sprintf("compaction %s failed", e.Op)
	if e.SessionID != "" {
		msg += fmt.Sprintf(" for session %s", e.SessionID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given operation and underlying
// error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:      op,
		Err:     err,
		Context: make(map[string]any),
	}
}

// WithSession sets the session ID and returns the error for chaining.
func (e *Error) WithSession(sessionID string) *Error {
	e.SessionID = sessionID
	return e
}

// WithContext adds a key-value pair to the error context and returns
// the error for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
