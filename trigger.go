package agentctx

import (
	"errors"
	"regexp"

	"github.com/agentctx/agentctx/compaction"
	"github.com/agentctx/agentctx/types"
)

// CalculateContextTokens computes the context size from a usage record:
// the provider's native total when reported, otherwise the sum of
// input, output, cache-read and cache-write tokens.
func CalculateContextTokens(usage *types.Usage) int {
	return usage.ContextTotal()
}

// ShouldCompact reports whether the threshold trigger fires:
// contextTokens has climbed above the context window minus the
// configured reserve.
func ShouldCompact(contextTokens, contextWindow int, settings compaction.Settings) bool {
	if !settings.Enabled {
		return false
	}
	return contextTokens > contextWindow-settings.ReserveTokens
}

var overflowPattern = regexp.MustCompile(`(?i)(prompt is too long|context window|context length|input is too long|exceeds? the maximum number of tokens)`)

// IsOverflowError reports whether err means the model rejected the
// request for exceeding its context window. Overflow errors are
// compaction's responsibility and are explicitly excluded from the
// retry path.
func IsOverflowError(err error) bool {
	if err == nil {
		return false
	}
	var oe *OverflowError
	if errors.As(err, &oe) {
		return true
	}
	return overflowPattern.MatchString(err.Error())
}

// OverflowError marks an error as a context-window overflow regardless
// of its message. Transports that detect overflow structurally wrap
// their error in one.
type OverflowError struct {
	Err error
}

func (e *OverflowError) Error() string {
	if e.Err != nil {
		return "context window overflow: " + e.Err.Error()
	}
	return "context window overflow"
}

func (e *OverflowError) Unwrap() error { return e.Err }

// isOverflowTurn reports whether the completed turn hit the overflow
// condition, either via its stop reason or via the transport error.
func isOverflowTurn(entry *types.Entry, turnErr error) bool {
	if entry != nil && entry.StopReason == types.StopReasonOverflow {
		return true
	}
	return IsOverflowError(turnErr)
}
