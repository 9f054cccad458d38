package compaction

import (
	"github.com/agentctx/agentctx/types"
)

const (
	// charsPerToken is the conservative character-to-token ratio used
	// for all text content.
	charsPerToken = 4

	// imageTokenCost is the flat cost charged per image block,
	// regardless of resolution.
	imageTokenCost = 1200
)

// UnknownKindFunc, when set, is invoked for every entry kind the
// estimator does not recognize. Unrecognized kinds estimate to zero so
// a future entry kind cannot crash estimation; the hook exists so that
// under-counting is at least visible.
var UnknownKindFunc func(kind types.EntryKind)

// EstimateTokens returns a deterministic token estimate for one entry.
// It is pure: no I/O, no state, same input same output.
func EstimateTokens(entry *types.Entry) int {
	if entry == nil {
		return 0
	}

	switch entry.Kind {
	case types.EntryUser, types.EntryToolResult, types.EntryLabel:
		return estimateBlocks(entry.Content)

	case types.EntryAssistant:
		total := 0
		for _, b := range entry.Content {
			switch b.Type {
			case types.ContentText, types.ContentThinking:
				total += approximateTokens(b.Text)
			case types.ContentToolUse:
				total += approximateTokens(b.ToolName)
				total += approximateTokens(string(b.ToolInput))
			case types.ContentImage:
				total += imageTokenCost
			}
		}
		return total

	case types.EntryBash:
		return approximateTokens(entry.Command) + approximateTokens(entry.Output)

	case types.EntryBranchSummary, types.EntryCompaction:
		return approximateTokens(entry.Summary)

	case types.EntrySettingChange:
		return 0

	default:
		if UnknownKindFunc != nil {
			UnknownKindFunc(entry.Kind)
		}
		return 0
	}
}

// EstimateRange sums EstimateTokens over entries[start:end].
func EstimateRange(entries []*types.Entry, start, end int) int {
	total := 0
	for i := start; i < end && i < len(entries); i++ {
		total += EstimateTokens(entries[i])
	}
	return total
}

func estimateBlocks(blocks []types.ContentBlock) int {
	total := 0
	for _, b := range blocks {
		switch b.Type {
		case types.ContentText, types.ContentThinking:
			total += approximateTokens(b.Text)
		case types.ContentImage:
			total += imageTokenCost
		}
	}
	return total
}

// approximateTokens estimates token count from character count at
// ~4 characters per token, with a minimum of 1 for non-empty text.
func approximateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := (len(text) + charsPerToken - 1) / charsPerToken
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
