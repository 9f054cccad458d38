package compaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentctx/agentctx/types"
)

// Preparation is the dry-run view of a compaction: the cut decision and
// the entry sets it implies, returned for an external reviewer to
// inspect or override before committing.
type Preparation struct {
	// RangeStart is the first index of the active range (just past the
	// latest compaction marker, or 0).
	RangeStart int

	// RangeEnd is one past the last entry considered.
	RangeEnd int

	// Cut is the cut-point decision inside the range.
	Cut CutPoint

	// Discarded are the entries that will be replaced by the summary.
	Discarded []*types.Entry

	// TurnPrefix holds the discarded prefix of a split turn, when the
	// cut falls inside one. It is a suffix of Discarded.
	TurnPrefix []*types.Entry

	// PreviousSummary is the summary text of the latest marker, if any.
	PreviousSummary string

	// PreviousDetails is the latest marker's detail payload, if any.
	PreviousDetails *types.CompactionDetails

	// TokensBefore is the context size measured before compaction,
	// taken from the last usable assistant usage record. Reporting
	// only; the cut decision always uses live re-estimation.
	TokensBefore int
}

// Result is the outcome of a committed compaction. The caller persists
// it as a new compaction marker and rebuilds its active context from
// FirstKeptEntryID onward.
type Result struct {
	// Summary is the full replacement text: history summary, the
	// turn-prefix summary when one was needed, and the file-operation
	// blocks.
	Summary string

	// FirstKeptEntryID identifies the first entry retained verbatim.
	FirstKeptEntryID string

	// TokensBefore is the measured context size before compaction.
	TokensBefore int

	// Details is the payload to attach to the marker.
	Details types.CompactionDetails

	// SplitTurn reports whether the cut split a turn.
	SplitTurn bool

	// Duration is how long the compaction took.
	Duration time.Duration
}

// PrepareCompaction computes the compaction plan for the given history
// without issuing any model calls. It returns ErrAlreadyCompacted when
// the most recent entry is a compaction marker, ErrDisabled when
// settings disable compaction, and ErrNothingToCompact when the active
// range is too small to discard anything.
func PrepareCompaction(entries []*types.Entry, settings Settings) (*Preparation, error) {
	if !settings.Enabled {
		return nil, ErrDisabled
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNothingToCompact
	}
	if entries[len(entries)-1].Kind == types.EntryCompaction {
		return nil, ErrAlreadyCompacted
	}

	rangeStart := 0
	var prevSummary string
	var prevDetails *types.CompactionDetails
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == types.EntryCompaction {
			rangeStart = i + 1
			prevSummary = entries[i].Summary
			prevDetails = entries[i].Details
			break
		}
	}
	rangeEnd := len(entries)

	if rangeEnd-rangeStart < 1 {
		return nil, ErrNothingToCompact
	}

	cut := FindCutPoint(entries, rangeStart, rangeEnd, settings.KeepRecentTokens)
	if cut.FirstKeptIndex <= rangeStart {
		return nil, ErrNothingToCompact
	}

	prep := &Preparation{
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		Cut:             cut,
		Discarded:       entries[rangeStart:cut.FirstKeptIndex],
		PreviousSummary: prevSummary,
		PreviousDetails: prevDetails,
		TokensBefore:    measureTokensBefore(entries, rangeStart, rangeEnd),
	}
	if cut.SplitTurn && cut.TurnStartIndex >= rangeStart {
		prep.TurnPrefix = entries[cut.TurnStartIndex:cut.FirstKeptIndex]
	}
	return prep, nil
}

// measureTokensBefore finds the context size from the last non-aborted,
// non-error assistant usage record, falling back to live estimation
// over the range when no such record exists.
func measureTokensBefore(entries []*types.Entry, start, end int) int {
	for i := end - 1; i >= start; i-- {
		e := entries[i]
		if e.Kind == types.EntryAssistant && e.Usage != nil && !e.Failed() {
			return e.Usage.ContextTotal()
		}
	}
	return EstimateRange(entries, start, end)
}

// Compactor composes the cut-point finder, file-operation tracker and
// summarizer into a single atomic compaction operation.
type Compactor struct {
	summarizer *Summarizer
	logger     Logger
}

// New creates a Compactor on the given completion service.
func New(svc CompletionService, logger Logger) *Compactor {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Compactor{
		summarizer: NewSummarizer(svc, logger),
		logger:     logger,
	}
}

// Compact executes a compaction over the given history and returns the
// result for the caller to persist. Nothing is committed here: a
// cancelled or failed compaction leaves the history untouched.
func (c *Compactor) Compact(ctx context.Context, entries []*types.Entry, model string, settings Settings, customInstructions string) (*Result, error) {
	start := time.Now()

	prep, err := PrepareCompaction(entries, settings)
	if err != nil {
		return nil, err
	}

	c.logger.Info("starting compaction",
		"range_start", prep.RangeStart,
		"range_end", prep.RangeEnd,
		"first_kept_index", prep.Cut.FirstKeptIndex,
		"split_turn", prep.Cut.SplitTurn,
		"tokens_before", prep.TokensBefore,
	)

	fileOps := trackFileOperations(prep.Discarded, prep.PreviousDetails)

	var summary, prefixSummary string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = c.summarizer.GenerateSummary(gctx, prep.Discarded, model, settings.ReserveTokens, prep.PreviousSummary, customInstructions)
		return err
	})
	if len(prep.TurnPrefix) > 0 {
		g.Go(func() error {
			var err error
			prefixSummary, err = c.summarizer.GenerateTurnPrefixSummary(gctx, prep.TurnPrefix, model, settings.ReserveTokens)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, NewError("Compact", err).WithContext("model", model)
	}

	var b strings.Builder
	b.WriteString(summary)
	if prefixSummary != "" {
		b.WriteString("\n\n")
		b.WriteString(turnPrefixHeading)
		b.WriteString("\n\n")
		b.WriteString(prefixSummary)
	}
	b.WriteString("\n\n")
	b.WriteString(formatFileBlocks(fileOps))

	result := &Result{
		Summary:          b.String(),
		FirstKeptEntryID: entries[prep.Cut.FirstKeptIndex].ID,
		TokensBefore:     prep.TokensBefore,
		Details: types.CompactionDetails{
			Version:       types.DetailsVersion,
			ReadFiles:     fileOps.ReadFiles,
			ModifiedFiles: fileOps.ModifiedFiles,
		},
		SplitTurn: prep.Cut.SplitTurn,
		Duration:  time.Since(start),
	}

	c.logger.Info("compaction complete",
		"tokens_before", result.TokensBefore,
		"discarded", len(prep.Discarded),
		"read_files", len(fileOps.ReadFiles),
		"modified_files", len(fileOps.ModifiedFiles),
		"duration_ms", result.Duration.Milliseconds(),
	)

	return result, nil
}

// formatFileBlocks renders the accumulated file operations as the
// <read-files>/<modified-files> blocks appended to every summary.
func formatFileBlocks(ops FileOperations) string {
	var b strings.Builder
	b.WriteString("<read-files>\n")
	for _, p := range ops.ReadFiles {
		fmt.Fprintf(&b, "%s\n", p)
	}
	b.WriteString("</read-files>\n<modified-files>\n")
	for _, p := range ops.ModifiedFiles {
		fmt.Fprintf(&b, "%s\n", p)
	}
	b.WriteString("</modified-files>")
	return b.String()
}
