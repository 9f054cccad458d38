package compaction

import (
	"github.com/agentctx/agentctx/types"
)

// CutPoint is the result of FindCutPoint.
type CutPoint struct {
	// FirstKeptIndex is the index of the first entry retained verbatim.
	// It always points at a user, assistant, bash, branch-summary or
	// label entry (or at the range start when the range holds no valid
	// cut point) and never at a tool result.
	FirstKeptIndex int

	// TurnStartIndex is the index of the entry starting the turn the
	// cut lands in, when the cut splits a turn. -1 otherwise.
	TurnStartIndex int

	// SplitTurn reports whether the cut falls inside a turn, leaving a
	// prefix behind that should be summarized separately.
	SplitTurn bool
}

// FindCutPoint determines where the retained recent window begins
// inside entries[start:end). It walks backward accumulating estimated
// tokens over message entries until keepRecentTokens is covered, then
// snaps to the nearest legal cut point, preferring to keep more rather
// than less.
func FindCutPoint(entries []*types.Entry, start, end, keepRecentTokens int) CutPoint {
	if start < 0 {
		start = 0
	}
	if end > len(entries) {
		end = len(entries)
	}
	if start >= end {
		return CutPoint{FirstKeptIndex: start, TurnStartIndex: -1}
	}

	if !hasValidCutPoint(entries, start, end) {
		// Degrade to keeping the whole range.
		return CutPoint{FirstKeptIndex: start, TurnStartIndex: -1}
	}

	// Walk backward until the retained window covers the budget. The
	// index where the walk stops is the first entry that is no longer
	// needed; the cut snaps to the earliest valid cut point at or
	// after it.
	budget := 0
	current := start
	for i := end - 1; i >= start; i-- {
		if budget >= keepRecentTokens {
			current = i
			break
		}
		if entries[i].Kind.IsMessage() {
			budget += EstimateTokens(entries[i])
		}
	}

	cut := -1
	for i := current; i < end; i++ {
		if entries[i].Kind.IsValidCutPoint() {
			cut = i
			break
		}
	}
	if cut < 0 {
		// Every valid cut point lies before the current index; keep
		// the whole range rather than cut illegally.
		cut = firstValidCutPoint(entries, start, end)
	}

	// Pull immediately preceding non-message entries (bash records,
	// setting changes) into the retained window so they stay attached
	// to the turn they belong to.
	for cut > start {
		prev := entries[cut-1]
		if prev.Kind == types.EntryCompaction || prev.Kind.IsMessage() || prev.Kind.IsTurnStart() {
			break
		}
		cut--
	}

	if entries[cut].Kind.IsTurnStart() {
		return CutPoint{FirstKeptIndex: cut, TurnStartIndex: -1}
	}

	turnStart := findTurnStart(entries, start, cut)
	if turnStart < 0 {
		return CutPoint{FirstKeptIndex: cut, TurnStartIndex: -1}
	}
	return CutPoint{FirstKeptIndex: cut, TurnStartIndex: turnStart, SplitTurn: true}
}

// findTurnStart scans backward from index cut-1 for the nearest
// turn-starting entry, stopping at a compaction marker or the range
// start. Returns -1 when the turn's start is not inside the range.
func findTurnStart(entries []*types.Entry, start, cut int) int {
	for i := cut - 1; i >= start; i-- {
		if entries[i].Kind == types.EntryCompaction {
			return -1
		}
		if entries[i].Kind.IsTurnStart() {
			return i
		}
	}
	return -1
}

func hasValidCutPoint(entries []*types.Entry, start, end int) bool {
	return firstValidCutPoint(entries, start, end) >= 0
}

func firstValidCutPoint(entries []*types.Entry, start, end int) int {
	for i := start; i < end; i++ {
		if entries[i].Kind.IsValidCutPoint() {
			return i
		}
	}
	return -1
}
