package types

import (
	"encoding/json"
	"time"
)

// EntryKind identifies the kind of a history entry. The set of kinds is
// closed: consumers switch exhaustively and treat anything else as an
// unknown future kind.
type EntryKind string

const (
	// EntryUser is a user message.
	EntryUser EntryKind = "user"

	// EntryAssistant is an assistant message, possibly containing
	// tool-call blocks.
	EntryAssistant EntryKind = "assistant"

	// EntryToolResult is the result of a tool call. Tool results are
	// never legal cut points: they must stay reachable from the
	// assistant entry that issued the call.
	EntryToolResult EntryKind = "tool_result"

	// EntryBash is a shell execution record (command + output) created
	// outside the normal tool loop.
	EntryBash EntryKind = "bash"

	// EntryBranchSummary marks a branch point and carries a summary of
	// the abandoned branch.
	EntryBranchSummary EntryKind = "branch_summary"

	// EntryLabel is a custom user-equivalent entry. It starts a turn
	// the same way a user message does.
	EntryLabel EntryKind = "label"

	// EntrySettingChange records a settings change. It is not a message
	// and sticks to the turn it was recorded in.
	EntrySettingChange EntryKind = "setting_change"

	// EntryCompaction is a compaction marker: the summary of everything
	// before it plus the identity of the first entry kept verbatim.
	EntryCompaction EntryKind = "compaction"
)

// IsMessage reports whether the kind participates in the conversation
// proper (counted when accumulating the retained-window token budget).
func (k EntryKind) IsMessage() bool {
	switch k {
	case EntryUser, EntryAssistant, EntryToolResult:
		return true
	}
	return false
}

// IsValidCutPoint reports whether retained history may legally begin at
// an entry of this kind.
func (k EntryKind) IsValidCutPoint() bool {
	switch k {
	case EntryUser, EntryAssistant, EntryBash, EntryBranchSummary, EntryLabel:
		return true
	}
	return false
}

// IsTurnStart reports whether an entry of this kind begins a turn.
func (k EntryKind) IsTurnStart() bool {
	switch k {
	case EntryUser, EntryLabel, EntryBranchSummary:
		return true
	}
	return false
}

// Stop reasons recorded on assistant entries.
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonMaxTokens = "max_tokens"
	StopReasonToolUse   = "tool_use"
	StopReasonAborted   = "aborted"
	StopReasonError     = "error"

	// StopReasonOverflow means the provider rejected the request for
	// exceeding its context window.
	StopReasonOverflow = "context_overflow"
)

// Entry is one immutable record in the append-only history. Entries are
// totally ordered by append order and never mutated; compaction only
// appends a new EntryCompaction marker.
type Entry struct {
	ID        string    `json:"id"`
	Kind      EntryKind `json:"kind"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	// Content blocks for user, assistant, tool_result and label entries.
	Content []ContentBlock `json:"content,omitempty"`

	// Assistant-only fields.
	StopReason string `json:"stop_reason,omitempty"`
	Usage      *Usage `json:"usage,omitempty"`

	// Bash-only fields.
	Command string `json:"command,omitempty"`
	Output  string `json:"output,omitempty"`

	// Summary text for branch_summary and compaction entries.
	Summary string `json:"summary,omitempty"`

	// Compaction-only fields.
	FirstKeptEntryID string             `json:"first_kept_entry_id,omitempty"`
	TokensBefore     int                `json:"tokens_before,omitempty"`
	Details          *CompactionDetails `json:"details,omitempty"`
}

// Text concatenates the text blocks of the entry. Handy for prompts and
// estimation of label entries.
func (e *Entry) Text() string {
	var out string
	for _, b := range e.Content {
		if b.Type == ContentText {
			out += b.Text
		}
	}
	return out
}

// Failed reports whether the entry records an aborted or failed
// assistant turn. Failed entries never contribute a usable usage record.
func (e *Entry) Failed() bool {
	return e.StopReason == StopReasonAborted ||
		e.StopReason == StopReasonError ||
		e.StopReason == StopReasonOverflow
}

// ContentType identifies the type of a content block.
type ContentType string

const (
	// ContentText is plain text.
	ContentText ContentType = "text"

	// ContentThinking is assistant thinking text.
	ContentThinking ContentType = "thinking"

	// ContentToolUse is a tool invocation issued by the assistant.
	ContentToolUse ContentType = "tool_use"

	// ContentImage is an image attachment.
	ContentImage ContentType = "image"
)

// ContentBlock is one piece of content inside an entry.
type ContentBlock struct {
	Type ContentType `json:"type"`

	// Text content (text and thinking blocks).
	Text string `json:"text,omitempty"`

	// Tool use content.
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`

	// Tool result linkage and payload (tool_result entries).
	ToolResultForUseID string `json:"tool_result_for,omitempty"`
	IsError            bool   `json:"is_error,omitempty"`

	// Image content.
	ImageSource *ImageSource `json:"source,omitempty"`
}

// ImageSource describes where image bytes come from.
type ImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Usage is the token usage the provider reported for one turn.
type Usage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadTokens     int `json:"cache_read_input_tokens,omitempty"`

	// ContextTokens is the provider's own total for the context, when
	// it reports one. Zero means "not reported"; callers fall back to
	// summing the component counts.
	ContextTokens int `json:"context_tokens,omitempty"`
}

// ContextTotal returns the context size this usage record represents:
// the provider's native total when reported, otherwise the sum of
// input, output and cache tokens.
func (u *Usage) ContextTotal() int {
	if u == nil {
		return 0
	}
	if u.ContextTokens > 0 {
		return u.ContextTokens
	}
	return u.InputTokens + u.OutputTokens + u.CacheCreationTokens + u.CacheReadTokens
}

// DetailsVersion is the current schema version of CompactionDetails.
const DetailsVersion = 1

// CompactionDetails is the opaque payload attached to a compaction
// marker. Beyond the two required file lists the payload is
// caller-defined; Extra round-trips untouched.
type CompactionDetails struct {
	Version int `json:"version"`

	// ReadFiles and ModifiedFiles are sorted, deduplicated and
	// disjoint: a path both read and written appears only under
	// ModifiedFiles.
	ReadFiles     []string `json:"read_files"`
	ModifiedFiles []string `json:"modified_files"`

	// External marks a marker whose summary was supplied by an
	// external override rather than generated here. File accumulators
	// do not carry forward from external markers.
	External bool `json:"external,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}
