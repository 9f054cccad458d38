package compaction

import (
	"fmt"
	"strings"

	"github.com/agentctx/agentctx/types"
)

// SummarySystemPrompt instructs the model to produce the structured
// summary that replaces discarded history.
const SummarySystemPrompt = `You are a conversation summarizer for a long-running coding agent. Your task is to summarize the conversation below so the agent can continue working with the summary in place of the original messages.

Produce the summary with exactly these sections:

## Goal
The user's overall objective and success criteria.

## Constraints
Requirements, limitations and preferences the user specified.

## Progress
### Done
Work that is complete.
### In-Progress
Work that is underway and its current state.
### Blocked
Work that cannot proceed and why.

## Key Decisions
Decisions made and their rationale.

## Next Steps
The immediate actions to take when resuming.

## Critical Context
Facts, file paths, error messages and details that must not be lost.

Guidelines:
- Be concise but complete. Preserve everything needed to continue.
- Include specific details: file names, function names, commands, error text.
- Do not invent information that is not in the conversation.
- Write "None" for sections with no relevant content.`

// SummaryUpdateSystemPrompt is used when a previous summary exists. The
// model updates that summary instead of re-summarizing from scratch, so
// repeated compactions stay correct without re-reading all history.
const SummaryUpdateSystemPrompt = SummarySystemPrompt + `

You are UPDATING an existing summary, not writing a new one. The existing summary is authoritative for everything it records. Preserve all of its facts. Only add new items, move items between Progress subsections as their state changed, and mark resolved items as done. Never drop a file path, decision or constraint that the existing summary mentions.`

// TurnPrefixSystemPrompt is the narrower prompt for summarizing the
// discarded prefix of a split turn.
const TurnPrefixSystemPrompt = `You are summarizing the beginning of a single in-progress exchange between a user and a coding agent. The rest of the exchange is retained verbatim, so summarize only what happened in the part shown: what was asked, what the agent did, and any results that matter. Be brief and factual. Do not speculate about what happens next.`

// turnPrefixHeading delimits the turn-prefix summary when it is
// appended to the history summary. The two provenances stay separable.
const turnPrefixHeading = "## Earlier in the current turn"

// BuildSummaryPrompt creates the user message asking for a history
// summary. previousSummary and customInstructions may be empty.
func BuildSummaryPrompt(conversation, previousSummary, customInstructions string) string {
	var b strings.Builder

	if previousSummary != "" {
		b.WriteString("<existing_summary>\n")
		b.WriteString(previousSummary)
		b.WriteString("\n</existing_summary>\n\n")
	}

	b.WriteString("<conversation>\n")
	b.WriteString(conversation)
	b.WriteString("\n</conversation>\n\n")

	if previousSummary != "" {
		b.WriteString("Update the existing summary with the conversation above. Preserve all prior facts.")
	} else {
		b.WriteString("Summarize the conversation above following the section format exactly.")
	}

	if customInstructions != "" {
		b.WriteString("\n\nAdditional instructions from the user:\n")
		b.WriteString(customInstructions)
	}

	return b.String()
}

// BuildTurnPrefixPrompt creates the user message asking for a
// turn-prefix summary.
func BuildTurnPrefixPrompt(prefix string) string {
	return "<turn_prefix>\n" + prefix + "\n</turn_prefix>\n\nSummarize the partial exchange above."
}

// FormatEntriesAsText renders entries as readable text for the
// summarization prompts.
func FormatEntriesAsText(entries []*types.Entry) string {
	var b strings.Builder
	for _, entry := range entries {
		text := formatEntry(entry)
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatEntry(entry *types.Entry) string {
	switch entry.Kind {
	case types.EntryUser, types.EntryLabel:
		return "User:\n" + formatBlocks(entry.Content)
	case types.EntryAssistant:
		return "Assistant:\n" + formatBlocks(entry.Content)
	case types.EntryToolResult:
		return "Tool result:\n" + formatBlocks(entry.Content)
	case types.EntryBash:
		out := entry.Output
		if len(out) > 500 {
			out = out[:497] + "..."
		}
		return fmt.Sprintf("Shell:\n$ %s\n%s", entry.Command, out)
	case types.EntryBranchSummary:
		return "Branch summary:\n" + entry.Summary
	case types.EntryCompaction:
		return "Previous summary:\n" + entry.Summary
	default:
		return ""
	}
}

func formatBlocks(blocks []types.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case types.ContentText:
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case types.ContentThinking:
			if b.Text != "" {
				parts = append(parts, "[Thinking: "+b.Text+"]")
			}
		case types.ContentToolUse:
			parts = append(parts, fmt.Sprintf("[Tool: %s, Input: %s]", b.ToolName, string(b.ToolInput)))
		case types.ContentImage:
			parts = append(parts, "[Image]")
		}
	}
	return strings.Join(parts, "\n")
}
