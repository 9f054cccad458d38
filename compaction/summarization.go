package compaction

import (
	"context"
	"fmt"

	"github.com/agentctx/agentctx/types"
)

// Output budgets carved out of ReserveTokens. The history summary gets
// 80% so the rest of the next request keeps headroom; the turn-prefix
// summary is smaller at 50%.
const (
	summaryBudgetPct    = 80
	turnPrefixBudgetPct = 50
)

// Summarizer generates the structured summaries that replace discarded
// history.
type Summarizer struct {
	svc    CompletionService
	logger Logger
}

// NewSummarizer creates a Summarizer on the given completion service.
func NewSummarizer(svc CompletionService, logger Logger) *Summarizer {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Summarizer{svc: svc, logger: logger}
}

// GenerateSummary produces the history summary for the discarded
// entries. When previousSummary is non-empty the update prompt is used:
// the model preserves all prior facts and only adds, moves or resolves
// items, so correctness survives many repeated compactions without
// re-reading the whole history.
func (s *Summarizer) GenerateSummary(ctx context.Context, entries []*types.Entry, model string, reserveTokens int, previousSummary, customInstructions string) (string, error) {
	if len(entries) == 0 {
		return "", ErrNothingToCompact
	}

	system := SummarySystemPrompt
	if previousSummary != "" {
		system = SummaryUpdateSystemPrompt
	}

	conversation := FormatEntriesAsText(entries)
	prompt := BuildSummaryPrompt(conversation, previousSummary, customInstructions)

	return s.complete(ctx, model, system, prompt, reserveTokens*summaryBudgetPct/100)
}

// GenerateTurnPrefixSummary produces the narrower summary of a split
// turn's discarded prefix.
func (s *Summarizer) GenerateTurnPrefixSummary(ctx context.Context, prefix []*types.Entry, model string, reserveTokens int) (string, error) {
	if len(prefix) == 0 {
		return "", ErrNothingToCompact
	}

	prompt := BuildTurnPrefixPrompt(FormatEntriesAsText(prefix))

	return s.complete(ctx, model, TurnPrefixSystemPrompt, prompt, reserveTokens*turnPrefixBudgetPct/100)
}

func (s *Summarizer) complete(ctx context.Context, model, system, prompt string, maxTokens int) (string, error) {
	if maxTokens < 1 {
		maxTokens = 1
	}

	resp, err := s.svc.Complete(ctx, CompletionRequest{
		Model:     model,
		System:    system,
		Messages:  []CompletionMessage{{Role: "user", Text: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}
	if !resp.Succeeded() {
		return "", fmt.Errorf("%w: completion stopped with %q", ErrSummarizationFailed, resp.StopReason)
	}
	if resp.Text == "" {
		return "", fmt.Errorf("%w: empty response from summarizer", ErrSummarizationFailed)
	}

	s.logger.Debug("summary generated",
		"model", model,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason,
	)

	return resp.Text, nil
}
