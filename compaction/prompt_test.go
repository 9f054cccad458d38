package compaction

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/agentctx/agentctx/types"
)

func TestBuildSummaryPrompt(t *testing.T) {
	prompt := BuildSummaryPrompt("the conversation", "", "")
	if !strings.Contains(prompt, "<conversation>\nthe conversation\n</conversation>") {
		t.Errorf("prompt missing conversation block: %q", prompt)
	}
	if strings.Contains(prompt, "<existing_summary>") {
		t.Error("no existing-summary block expected without a previous summary")
	}

	prompt = BuildSummaryPrompt("the conversation", "prior facts", "focus on tests")
	if !strings.Contains(prompt, "<existing_summary>\nprior facts\n</existing_summary>") {
		t.Errorf("prompt missing existing summary: %q", prompt)
	}
	if !strings.Contains(prompt, "Preserve all prior facts") {
		t.Errorf("update prompt missing preservation instruction: %q", prompt)
	}
	if !strings.Contains(prompt, "focus on tests") {
		t.Errorf("prompt missing custom instructions: %q", prompt)
	}
}

func TestFormatEntriesAsText(t *testing.T) {
	input, _ := json.Marshal(map[string]string{"path": "x.go"})
	entries := []*types.Entry{
		textEntry(types.EntryUser, "please fix it"),
		{Kind: types.EntryAssistant, Content: []types.ContentBlock{
			{Type: types.ContentThinking, Text: "hmm"},
			{Type: types.ContentToolUse, ToolName: "read", ToolInput: input},
		}},
		{Kind: types.EntryBash, Command: "go vet ./...", Output: "ok"},
		{Kind: types.EntryCompaction, Summary: "earlier work"},
		{Kind: types.EntrySettingChange},
	}

	text := FormatEntriesAsText(entries)
	for _, want := range []string{
		"User:\nplease fix it",
		"[Thinking: hmm]",
		"[Tool: read",
		"$ go vet ./...",
		"Previous summary:\nearlier work",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("formatted text missing %q:\n%s", want, text)
		}
	}
}

func TestFormatEntriesTruncatesBashOutput(t *testing.T) {
	entries := []*types.Entry{
		{Kind: types.EntryBash, Command: "cat big", Output: strings.Repeat("x", 600)},
	}

	text := FormatEntriesAsText(entries)
	if strings.Contains(text, strings.Repeat("x", 501)) {
		t.Error("bash output not truncated")
	}
	if !strings.Contains(text, "...") {
		t.Error("truncated output missing ellipsis")
	}
}
