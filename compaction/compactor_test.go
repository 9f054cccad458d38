package compaction

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/agentctx/agentctx/types"
)

// fakeService is a scripted CompletionService.
type fakeService struct {
	mu       sync.Mutex
	requests []CompletionRequest
	respond  func(req CompletionRequest) (*CompletionResponse, error)
}

func (f *fakeService) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(req)
	}
	return &CompletionResponse{StopReason: "end_turn", Text: "generated summary"}, nil
}

func (f *fakeService) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func enabledSettings(keepRecent int) Settings {
	return Settings{Enabled: true, ReserveTokens: 1000, KeepRecentTokens: keepRecent}
}

// workHistory builds a two-turn history: a long first turn that reads
// b.go and writes a.txt, then a short second turn.
func workHistory() []*types.Entry {
	return []*types.Entry{
		{ID: "e0", Kind: types.EntryUser, Content: []types.ContentBlock{{Type: types.ContentText, Text: strings.Repeat("u", 400)}}},
		{ID: "e1", Kind: types.EntryAssistant, Content: []types.ContentBlock{
			{Type: types.ContentText, Text: strings.Repeat("a", 400)},
			toolUse("read", "b.go"),
			toolUse("write", "a.txt"),
		}},
		{ID: "e2", Kind: types.EntryToolResult, Content: []types.ContentBlock{{Type: types.ContentText, Text: "ok"}}},
		{ID: "e3", Kind: types.EntryAssistant, Content: []types.ContentBlock{{Type: types.ContentText, Text: "finished"}}},
		{ID: "e4", Kind: types.EntryUser, Content: []types.ContentBlock{{Type: types.ContentText, Text: "next"}}},
		{ID: "e5", Kind: types.EntryAssistant,
			Content:    []types.ContentBlock{{Type: types.ContentText, Text: "done"}},
			StopReason: types.StopReasonEndTurn,
			Usage:      &types.Usage{ContextTokens: 12345},
		},
	}
}

func TestPrepareCompactionErrors(t *testing.T) {
	user := textEntry(types.EntryUser, "hello")

	tests := []struct {
		name     string
		entries  []*types.Entry
		settings Settings
		wantErr  error
	}{
		{"disabled", []*types.Entry{user}, Settings{Enabled: false, ReserveTokens: 100}, ErrDisabled},
		{"invalid settings", []*types.Entry{user}, Settings{Enabled: true, ReserveTokens: 0}, ErrInvalidSettings},
		{"empty history", nil, enabledSettings(0), ErrNothingToCompact},
		{
			"marker is latest entry",
			[]*types.Entry{user, {Kind: types.EntryCompaction, Summary: "s"}},
			enabledSettings(0),
			ErrAlreadyCompacted,
		},
		{
			"nothing discardable",
			[]*types.Entry{user},
			enabledSettings(1 << 30),
			ErrNothingToCompact,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PrepareCompaction(tt.entries, tt.settings)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PrepareCompaction() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrepareCompactionRangeStartsAfterMarker(t *testing.T) {
	entries := []*types.Entry{
		textEntry(types.EntryUser, strings.Repeat("old", 100)),
		{Kind: types.EntryCompaction, Summary: "old summary", Details: &types.CompactionDetails{
			Version:   types.DetailsVersion,
			ReadFiles: []string{"carried.go"},
		}},
		textEntry(types.EntryUser, strings.Repeat("u", 400)),
		textEntry(types.EntryAssistant, strings.Repeat("a", 400)),
		textEntry(types.EntryUser, "next"),
		textEntry(types.EntryAssistant, "done"),
	}

	prep, err := PrepareCompaction(entries, enabledSettings(1))
	if err != nil {
		t.Fatalf("PrepareCompaction() error = %v", err)
	}
	if prep.RangeStart != 2 {
		t.Errorf("RangeStart = %d, want 2 (just past the marker)", prep.RangeStart)
	}
	if prep.PreviousSummary != "old summary" {
		t.Errorf("PreviousSummary = %q, want %q", prep.PreviousSummary, "old summary")
	}
	if prep.PreviousDetails == nil || prep.PreviousDetails.ReadFiles[0] != "carried.go" {
		t.Errorf("PreviousDetails not captured: %+v", prep.PreviousDetails)
	}
	for _, e := range prep.Discarded {
		if e.Kind == types.EntryCompaction {
			t.Error("discarded set must not include the previous marker")
		}
	}
}

func TestMeasureTokensBefore(t *testing.T) {
	tests := []struct {
		name    string
		entries []*types.Entry
		want    int
	}{
		{
			"uses last healthy assistant usage",
			[]*types.Entry{
				{Kind: types.EntryAssistant, StopReason: types.StopReasonEndTurn, Usage: &types.Usage{ContextTokens: 500}},
				{Kind: types.EntryAssistant, StopReason: types.StopReasonEndTurn, Usage: &types.Usage{ContextTokens: 900}},
			},
			900,
		},
		{
			"skips aborted and errored turns",
			[]*types.Entry{
				{Kind: types.EntryAssistant, StopReason: types.StopReasonEndTurn, Usage: &types.Usage{ContextTokens: 700}},
				{Kind: types.EntryAssistant, StopReason: types.StopReasonAborted, Usage: &types.Usage{ContextTokens: 100}},
				{Kind: types.EntryAssistant, StopReason: types.StopReasonError, Usage: &types.Usage{ContextTokens: 50}},
			},
			700,
		},
		{
			"falls back to estimation",
			[]*types.Entry{
				textEntry(types.EntryUser, strings.Repeat("x", 40)),
			},
			10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := measureTokensBefore(tt.entries, 0, len(tt.entries)); got != tt.want {
				t.Errorf("measureTokensBefore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCompactWholeTurns(t *testing.T) {
	svc := &fakeService{}
	c := New(svc, nil)
	entries := workHistory()

	// Budget of 1 token keeps only the final exchange; the cut lands on
	// the second turn's user entry, so no turn is split.
	result, err := c.Compact(context.Background(), entries, "test-model", enabledSettings(1), "")
	if err != nil {
		t.Fatalf("Compact() error = %v", err)
	}

	if result.FirstKeptEntryID != "e4" {
		t.Errorf("FirstKeptEntryID = %q, want e4", result.FirstKeptEntryID)
	}
	if result.SplitTurn {
		t.Error("cut on a user entry must not report a split turn")
	}
	if svc.requestCount() != 1 {
		t.Errorf("completion calls = %d, want 1 (no turn-prefix summary)", svc.requestCount())
	}
	if result.TokensBefore != 12345 {
		t.Errorf("TokensBefore = %d, want 12345 from the last usage record", result.TokensBefore)
	}
	if result.Details.Version != types.DetailsVersion {
		t.Errorf("Details.Version = %d, want %d", result.Details.Version, types.DetailsVersion)
	}

	if !strings.Contains(result.Summary, "generated summary") {
		t.Errorf("Summary missing generated text: %q", result.Summary)
	}
	if !strings.Contains(result.Summary, "<modified-files>\na.txt\n</modified-files>") {
		t.Errorf("Summary missing modified-files block: %q", result.Summary)
	}
	if !strings.Contains(result.Summary, "<read-files>\nb.go\n</read-files>") {
		t.Errorf("Summary missing read-files block: %q", result.Summary)
	}
}

func TestCompactSplitTurn(t *testing.T) {
	svc := &fakeService{
		respond: func(req CompletionRequest) (*CompletionResponse, error) {
			if req.System == TurnPrefixSystemPrompt {
				return &CompletionResponse{StopReason: "end_turn", Text: "prefix summary"}, nil
			}
			return &CompletionResponse{StopReason: "end_turn", Text: "history summary"}, nil
		},
	}
	c := New(svc, nil)
	entries := workHistory()

	// Budget of 2 tokens pushes the cut to e3, mid-way through the
	// first turn.
	result, err := c.Compact(context.Background(), entries, "test-model", enabledSettings(2), "")
	if err != nil {
		t.Fatalf("Compact() error = %v", err)
	}

	if result.FirstKeptEntryID != "e3" {
		t.Errorf("FirstKeptEntryID = %q, want e3", result.FirstKeptEntryID)
	}
	if !result.SplitTurn {
		t.Fatal("expected a split turn")
	}
	if svc.requestCount() != 2 {
		t.Errorf("completion calls = %d, want 2 (history + turn prefix)", svc.requestCount())
	}

	if !strings.Contains(result.Summary, "history summary") {
		t.Errorf("Summary missing history part: %q", result.Summary)
	}
	if !strings.Contains(result.Summary, turnPrefixHeading) {
		t.Errorf("Summary missing turn-prefix heading: %q", result.Summary)
	}
	if !strings.Contains(result.Summary, "prefix summary") {
		t.Errorf("Summary missing turn-prefix part: %q", result.Summary)
	}
	if strings.Index(result.Summary, "history summary") > strings.Index(result.Summary, turnPrefixHeading) {
		t.Error("history summary must come before the turn-prefix section")
	}
}

func TestCompactKeptEntriesNotTracked(t *testing.T) {
	svc := &fakeService{}
	c := New(svc, nil)

	// A zero budget cuts at the assistant entry itself, so only the
	// user message is discarded. File tracking covers the discarded
	// range only: the kept assistant's write is not recorded, and will
	// be seen by a later compaction once that entry is discarded.
	entries := []*types.Entry{
		{ID: "e0", Kind: types.EntryUser, Content: []types.ContentBlock{{Type: types.ContentText, Text: strings.Repeat("u", 100)}}},
		{ID: "e1", Kind: types.EntryAssistant, Content: []types.ContentBlock{toolUse("write", "a.txt")}},
	}

	result, err := c.Compact(context.Background(), entries, "test-model", enabledSettings(0), "")
	if err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	if result.FirstKeptEntryID != "e1" {
		t.Fatalf("FirstKeptEntryID = %q, want e1", result.FirstKeptEntryID)
	}
	if len(result.Details.ModifiedFiles) != 0 {
		t.Errorf("ModifiedFiles = %v, want empty: the writing entry was kept", result.Details.ModifiedFiles)
	}

	// Once the assistant entry is discarded by a follow-up compaction,
	// its write shows up through the tracker.
	ops := trackFileOperations(entries, &result.Details)
	if len(ops.ModifiedFiles) != 1 || ops.ModifiedFiles[0] != "a.txt" {
		t.Errorf("ModifiedFiles after discarding = %v, want [a.txt]", ops.ModifiedFiles)
	}
}

func TestCompactSummarizationFailure(t *testing.T) {
	svc := &fakeService{
		respond: func(req CompletionRequest) (*CompletionResponse, error) {
			return nil, errors.New("503 service unavailable")
		},
	}
	c := New(svc, nil)

	_, err := c.Compact(context.Background(), workHistory(), "test-model", enabledSettings(1), "")
	if !errors.Is(err, ErrSummarizationFailed) {
		t.Fatalf("Compact() error = %v, want ErrSummarizationFailed", err)
	}

	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("Compact() error = %T, want *Error", err)
	}
	if cerr.Op != "Compact" {
		t.Errorf("Op = %q, want Compact", cerr.Op)
	}
	if cerr.Context["model"] != "test-model" {
		t.Errorf("Context[model] = %v, want test-model", cerr.Context["model"])
	}
}

func TestCompactRefusesTruncatedSummary(t *testing.T) {
	svc := &fakeService{
		respond: func(req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{StopReason: "refusal", Text: "partial"}, nil
		},
	}
	c := New(svc, nil)

	_, err := c.Compact(context.Background(), workHistory(), "test-model", enabledSettings(1), "")
	if !errors.Is(err, ErrSummarizationFailed) {
		t.Fatalf("Compact() error = %v, want ErrSummarizationFailed", err)
	}
}

func TestCompactUsesUpdatePromptAfterPreviousMarker(t *testing.T) {
	svc := &fakeService{}
	c := New(svc, nil)

	entries := []*types.Entry{
		{ID: "m0", Kind: types.EntryCompaction, Summary: "old summary"},
		{ID: "e1", Kind: types.EntryUser, Content: []types.ContentBlock{{Type: types.ContentText, Text: strings.Repeat("u", 400)}}},
		{ID: "e2", Kind: types.EntryAssistant, Content: []types.ContentBlock{{Type: types.ContentText, Text: strings.Repeat("a", 400)}}},
		{ID: "e3", Kind: types.EntryUser, Content: []types.ContentBlock{{Type: types.ContentText, Text: "next"}}},
		{ID: "e4", Kind: types.EntryAssistant, Content: []types.ContentBlock{{Type: types.ContentText, Text: "done"}}},
	}

	if _, err := c.Compact(context.Background(), entries, "test-model", enabledSettings(1), ""); err != nil {
		t.Fatalf("Compact() error = %v", err)
	}

	if svc.requestCount() != 1 {
		t.Fatalf("completion calls = %d, want 1", svc.requestCount())
	}
	req := svc.requests[0]
	if req.System != SummaryUpdateSystemPrompt {
		t.Error("expected the update system prompt when a previous summary exists")
	}
	if !strings.Contains(req.Messages[0].Text, "<existing_summary>\nold summary") {
		t.Errorf("prompt missing existing summary: %q", req.Messages[0].Text)
	}
}

func TestSummarizerBudgets(t *testing.T) {
	svc := &fakeService{}
	s := NewSummarizer(svc, nil)

	entries := []*types.Entry{textEntry(types.EntryUser, "hello")}

	if _, err := s.GenerateSummary(context.Background(), entries, "m", 1000, "", ""); err != nil {
		t.Fatalf("GenerateSummary() error = %v", err)
	}
	if got := svc.requests[0].MaxTokens; got != 800 {
		t.Errorf("summary MaxTokens = %d, want 800 (80%% of reserve)", got)
	}

	if _, err := s.GenerateTurnPrefixSummary(context.Background(), entries, "m", 1000); err != nil {
		t.Fatalf("GenerateTurnPrefixSummary() error = %v", err)
	}
	if got := svc.requests[1].MaxTokens; got != 500 {
		t.Errorf("turn-prefix MaxTokens = %d, want 500 (50%% of reserve)", got)
	}
}
