package agentctx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentctx/agentctx/compaction"
	"github.com/agentctx/agentctx/history"
	"github.com/agentctx/agentctx/hooks"
	"github.com/agentctx/agentctx/types"
)

// Config holds session configuration.
type Config struct {
	// SessionID identifies the session in the store. Generated when
	// empty.
	SessionID string

	// Model is the model used for summary generation.
	Model string

	// ContextWindow is the model's context window in tokens.
	ContextWindow int

	// Settings are the compaction settings. Zero fields get defaults.
	Settings compaction.Settings

	// Retry configures the backoff controller. Zero fields get
	// defaults.
	Retry RetryConfig

	// Logger receives structured log output. Nil means silent.
	Logger compaction.Logger

	// Hooks receives lifecycle events. Nil means none.
	Hooks *hooks.Registry
}

// TurnAction tells the caller what to do after ObserveTurn.
type TurnAction int

const (
	// ActionNone: continue normally. A threshold compaction may have
	// run; check Outcome.Compaction.
	ActionNone TurnAction = iota

	// ActionResubmit: an overflow compaction succeeded; resubmit the
	// failed request immediately.
	ActionResubmit

	// ActionRetry: a recoverable failure was recorded; wait
	// Outcome.RetryDelay (see RetryController.Wait) and resubmit.
	ActionRetry
)

// TurnOutcome is the session's decision for one completed turn.
type TurnOutcome struct {
	Action TurnAction

	// RetryDelay is the backoff before resubmitting, for ActionRetry.
	RetryDelay time.Duration

	// Compaction is set when a compaction ran during this observation.
	Compaction *compaction.Result

	// CompactionErr records a threshold-path compaction failure. The
	// session stays usable; the user can compact manually or continue.
	CompactionErr error
}

// Session owns the active in-memory context of one conversation and
// applies the compaction and retry policy to every completed turn.
//
// The session serializes compaction: at most one runs at a time, and
// concurrent requests are rejected with ErrCompactionInFlight. Methods
// are safe for concurrent use, but the retry wait and a compaction must
// not be run in overlapping fashion against the same history.
type Session struct {
	id            string
	store         history.Store
	compactor     *compaction.Compactor
	settings      compaction.Settings
	model         string
	contextWindow int
	retry         *RetryController
	hooks         *hooks.Registry
	logger        compaction.Logger

	mu         sync.Mutex
	active     []*types.Entry
	compacting bool
}

// NewSession creates a session over the given store and completion
// service and loads any existing active context from the store.
func NewSession(store history.Store, svc compaction.CompletionService, config Config) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: completion service is required", ErrInvalidConfig)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if config.ContextWindow <= 0 {
		return nil, fmt.Errorf("%w: context window must be positive", ErrInvalidConfig)
	}

	config.Settings.ApplyDefaults()
	if err := config.Settings.Validate(); err != nil {
		return nil, err
	}
	if config.SessionID == "" {
		config.SessionID = uuid.NewString()
	}
	if config.Logger == nil {
		config.Logger = compaction.NopLogger{}
	}
	if config.Hooks == nil {
		config.Hooks = hooks.NewRegistry()
	}

	s := &Session{
		id:            config.SessionID,
		store:         store,
		compactor:     compaction.New(svc, config.Logger),
		settings:      config.Settings,
		model:         config.Model,
		contextWindow: config.ContextWindow,
		retry:         NewRetryController(config.Retry, config.Logger),
		hooks:         config.Hooks,
		logger:        config.Logger,
	}

	if err := s.load(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Retry returns the session's retry controller.
func (s *Session) Retry() *RetryController { return s.retry }

// load rebuilds the active context from the store: the most recent
// compaction marker (if any) plus everything after it.
func (s *Session) load(ctx context.Context) error {
	entries, err := s.store.ListEntries(ctx, s.id)
	if err != nil {
		return fmt.Errorf("load session %s: %w", s.id, err)
	}

	start := 0
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == types.EntryCompaction {
			start = i
			break
		}
	}

	s.mu.Lock()
	s.active = append([]*types.Entry(nil), entries[start:]...)
	s.mu.Unlock()
	return nil
}

// Append persists entries and adds them to the active context. Entries
// without an ID get one assigned.
func (s *Session) Append(ctx context.Context, entries ...*types.Entry) error {
	now := time.Now()
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
	}

	if err := s.store.AppendEntries(ctx, s.id, entries...); err != nil {
		return fmt.Errorf("append entries to session %s: %w", s.id, err)
	}

	s.mu.Lock()
	s.active = append(s.active, entries...)
	s.mu.Unlock()
	return nil
}

// ActiveEntries returns a snapshot of the active context.
func (s *Session) ActiveEntries() []*types.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.Entry(nil), s.active...)
}

// ObserveTurn applies the trigger and retry policy to one completed
// turn. entry is the assistant entry the turn produced (already
// appended for successful turns); turnErr is the transport error, if
// any.
//
// On overflow, the failed entry is dropped from the active context
// only (persisted history is append-only), compaction runs, and the
// caller resubmits. On a recoverable error, the failed entry is
// dropped and a backoff delay is returned. On success, the threshold
// trigger may compact proactively; a failure there is reported in the
// outcome but leaves the session usable.
func (s *Session) ObserveTurn(ctx context.Context, entry *types.Entry, turnErr error) (*TurnOutcome, error) {
	if isOverflowTurn(entry, turnErr) {
		s.dropFromActive(entry)
		result, err := s.Compact(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("context overflow: compaction failed (%w); input may be too large to compact", err)
		}
		return &TurnOutcome{Action: ActionResubmit, Compaction: result}, nil
	}

	if turnErr != nil {
		if !IsRecoverable(turnErr) {
			return nil, turnErr
		}
		s.dropFromActive(entry)
		delay, err := s.retry.RecordFailure(turnErr)
		if err != nil {
			s.triggerHook(func() error {
				return s.hooks.TriggerRetryExhausted(ctx, s.id, s.retry.config.MaxAttempts, turnErr)
			})
			return nil, err
		}
		s.triggerHook(func() error {
			return s.hooks.TriggerRetryScheduled(ctx, s.id, s.retry.Attempts(), delay, turnErr)
		})
		return &TurnOutcome{Action: ActionRetry, RetryDelay: delay}, nil
	}

	if attempts := s.retry.Attempts(); s.retry.RecordSuccess() {
		s.triggerHook(func() error {
			return s.hooks.TriggerRetrySucceeded(ctx, s.id, attempts)
		})
	}
	s.triggerHook(func() error {
		return s.hooks.TriggerTurnCompleted(ctx, s.id, entry)
	})

	if entry != nil && entry.Usage != nil {
		tokens := CalculateContextTokens(entry.Usage)
		if ShouldCompact(tokens, s.contextWindow, s.settings) {
			result, err := s.Compact(ctx, "")
			if err != nil {
				s.logger.Warn("threshold compaction failed, session remains usable",
					"session_id", s.id, "error", err)
				return &TurnOutcome{Action: ActionNone, CompactionErr: err}, nil
			}
			return &TurnOutcome{Action: ActionNone, Compaction: result}, nil
		}
	}

	return &TurnOutcome{Action: ActionNone}, nil
}

// Compact runs a compaction over the active context, persists the
// marker, and rebuilds the active context from the marker plus the
// retained entries. Nothing is persisted when the compaction fails or
// is cancelled.
func (s *Session) Compact(ctx context.Context, customInstructions string) (*compaction.Result, error) {
	entries, err := s.beginCompaction()
	if err != nil {
		return nil, err
	}
	defer s.endCompaction()

	s.triggerHook(func() error {
		return s.hooks.TriggerBeforeCompaction(ctx, s.id)
	})

	result, err := s.compactor.Compact(ctx, entries, s.model, s.settings, customInstructions)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, result); err != nil {
		return nil, err
	}

	s.triggerHook(func() error {
		return s.hooks.TriggerAfterCompaction(ctx, s.id, result)
	})
	return result, nil
}

// CompactWithSummary commits a compaction using an externally supplied
// summary instead of generating one. The resulting marker is flagged
// external, so the next compaction will not carry file accumulators
// forward from it.
func (s *Session) CompactWithSummary(ctx context.Context, summary string) (*compaction.Result, error) {
	entries, err := s.beginCompaction()
	if err != nil {
		return nil, err
	}
	defer s.endCompaction()

	prep, err := compaction.PrepareCompaction(entries, s.settings)
	if err != nil {
		return nil, err
	}

	result := &compaction.Result{
		Summary:          summary,
		FirstKeptEntryID: entries[prep.Cut.FirstKeptIndex].ID,
		TokensBefore:     prep.TokensBefore,
		Details: types.CompactionDetails{
			Version:  types.DetailsVersion,
			External: true,
		},
		SplitTurn: prep.Cut.SplitTurn,
	}

	if err := s.commit(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Prepare returns the dry-run compaction plan for the active context,
// or nil when there is nothing to prepare (already compacted, disabled,
// or nothing to discard).
func (s *Session) Prepare() (*compaction.Preparation, error) {
	prep, err := compaction.PrepareCompaction(s.ActiveEntries(), s.settings)
	if err != nil {
		return nil, err
	}
	return prep, nil
}

func (s *Session) beginCompaction() ([]*types.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compacting {
		return nil, ErrCompactionInFlight
	}
	s.compacting = true
	return append([]*types.Entry(nil), s.active...), nil
}

func (s *Session) endCompaction() {
	s.mu.Lock()
	s.compacting = false
	s.mu.Unlock()
}

// commit persists the marker and rebuilds the active context as
// marker + retained entries. This is the only point where a compaction
// becomes visible.
func (s *Session) commit(ctx context.Context, result *compaction.Result) error {
	marker := &types.Entry{
		ID:               uuid.NewString(),
		Kind:             types.EntryCompaction,
		CreatedAt:        time.Now(),
		Summary:          result.Summary,
		FirstKeptEntryID: result.FirstKeptEntryID,
		TokensBefore:     result.TokensBefore,
		Details:          &result.Details,
	}

	if err := s.store.AppendMarker(ctx, s.id, marker); err != nil {
		return fmt.Errorf("append compaction marker for session %s: %w", s.id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := -1
	for i, e := range s.active {
		if e.ID == result.FirstKeptEntryID {
			kept = i
			break
		}
	}
	if kept < 0 {
		return fmt.Errorf("%w: first kept entry %s not in active context", ErrEntryNotFound, result.FirstKeptEntryID)
	}

	rebuilt := make([]*types.Entry, 0, len(s.active)-kept+1)
	rebuilt = append(rebuilt, marker)
	rebuilt = append(rebuilt, s.active[kept:]...)
	s.active = rebuilt
	return nil
}

// dropFromActive removes the failed entry from the active context.
// Persisted history is append-only and keeps it. Applied exactly once
// per failure: a second call for the same entry is a no-op.
func (s *Session) dropFromActive(entry *types.Entry) {
	if entry == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.active); n > 0 && s.active[n-1].ID == entry.ID {
		s.active = s.active[:n-1]
	}
}

// triggerHook runs a hook trigger, logging instead of failing: hooks
// are observability, not control flow. A panicking hook is recovered
// so an observer can never take down the session.
func (s *Session) triggerHook(fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("hook panicked", "session_id", s.id, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		s.logger.Warn("hook failed", "session_id", s.id, "error", err)
	}
}

// ContextStats describes the current active context.
type ContextStats struct {
	SessionID       string
	Entries         int
	EstimatedTokens int
	Compacted       bool
}

// Stats reports the size of the active context using live estimation.
func (s *Session) Stats() ContextStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	compacted := false
	for _, e := range s.active {
		total += compaction.EstimateTokens(e)
		if e.Kind == types.EntryCompaction {
			compacted = true
		}
	}
	return ContextStats{
		SessionID:       s.id,
		Entries:         len(s.active),
		EstimatedTokens: total,
		Compacted:       compacted,
	}
}
