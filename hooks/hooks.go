// Package hooks provides observer hooks for session lifecycle events:
// completed turns, compactions and retry scheduling. Hooks are for
// observability; a hook error is logged by the session, never fatal.
package hooks

import (
	"context"
	"sync"
	"time"

	"github.com/agentctx/agentctx/compaction"
	"github.com/agentctx/agentctx/types"
)

// TurnCompletedHook is called after every successful assistant turn.
type TurnCompletedHook func(ctx context.Context, sessionID string, entry *types.Entry) error

// BeforeCompactionHook is called before a compaction starts.
type BeforeCompactionHook func(ctx context.Context, sessionID string) error

// AfterCompactionHook is called after a compaction commits.
type AfterCompactionHook func(ctx context.Context, sessionID string, result *compaction.Result) error

// RetryScheduledHook is called when a recoverable failure schedules a
// delayed resubmission.
type RetryScheduledHook func(ctx context.Context, sessionID string, attempt int, delay time.Duration, err error) error

// RetrySucceededHook is called when a turn succeeds after prior
// retries.
type RetrySucceededHook func(ctx context.Context, sessionID string, attempts int) error

// RetryExhaustedHook is called once when the retry limit is exceeded.
type RetryExhaustedHook func(ctx context.Context, sessionID string, attempts int, err error) error

// Registry holds all registered hooks.
type Registry struct {
	mu               sync.RWMutex
	turnCompleted    []TurnCompletedHook
	beforeCompaction []BeforeCompactionHook
	afterCompaction  []AfterCompactionHook
	retryScheduled   []RetryScheduledHook
	retrySucceeded   []RetrySucceededHook
	retryExhausted   []RetryExhaustedHook
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// OnTurnCompleted registers a turn-completed hook.
func (r *Registry) OnTurnCompleted(hook TurnCompletedHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turnCompleted = append(r.turnCompleted, hook)
}

// OnBeforeCompaction registers a before-compaction hook.
func (r *Registry) OnBeforeCompaction(hook BeforeCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeCompaction = append(r.beforeCompaction, hook)
}

// OnAfterCompaction registers an after-compaction hook.
func (r *Registry) OnAfterCompaction(hook AfterCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterCompaction = append(r.afterCompaction, hook)
}

// OnRetryScheduled registers a retry-scheduled hook.
func (r *Registry) OnRetryScheduled(hook RetryScheduledHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryScheduled = append(r.retryScheduled, hook)
}

// OnRetrySucceeded registers a retry-succeeded hook.
func (r *Registry) OnRetrySucceeded(hook RetrySucceededHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retrySucceeded = append(r.retrySucceeded, hook)
}

// OnRetryExhausted registers a retry-exhausted hook.
func (r *Registry) OnRetryExhausted(hook RetryExhaustedHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryExhausted = append(r.retryExhausted, hook)
}

// TriggerTurnCompleted calls all registered turn-completed hooks and
// returns the first error.
func (r *Registry) TriggerTurnCompleted(ctx context.Context, sessionID string, entry *types.Entry) error {
	r.mu.RLock()
	hooks := append([]TurnCompletedHook(nil), r.turnCompleted...)
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h(ctx, sessionID, entry); err != nil {
			return err
		}
	}
	return nil
}

// TriggerBeforeCompaction calls all registered before-compaction hooks.
func (r *Registry) TriggerBeforeCompaction(ctx context.Context, sessionID string) error {
	r.mu.RLock()
	hooks := append([]BeforeCompactionHook(nil), r.beforeCompaction...)
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h(ctx, sessionID); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCompaction calls all registered after-compaction hooks.
func (r *Registry) TriggerAfterCompaction(ctx context.Context, sessionID string, result *compaction.Result) error {
	r.mu.RLock()
	hooks := append([]AfterCompactionHook(nil), r.afterCompaction...)
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h(ctx, sessionID, result); err != nil {
			return err
		}
	}
	return nil
}

// TriggerRetryScheduled calls all registered retry-scheduled hooks.
func (r *Registry) TriggerRetryScheduled(ctx context.Context, sessionID string, attempt int, delay time.Duration, cause error) error {
	r.mu.RLock()
	hooks := append([]RetryScheduledHook(nil), r.retryScheduled...)
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h(ctx, sessionID, attempt, delay, cause); err != nil {
			return err
		}
	}
	return nil
}

// TriggerRetrySucceeded calls all registered retry-succeeded hooks.
func (r *Registry) TriggerRetrySucceeded(ctx context.Context, sessionID string, attempts int) error {
	r.mu.RLock()
	hooks := append([]RetrySucceededHook(nil), r.retrySucceeded...)
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h(ctx, sessionID, attempts); err != nil {
			return err
		}
	}
	return nil
}

// TriggerRetryExhausted calls all registered retry-exhausted hooks.
func (r *Registry) TriggerRetryExhausted(ctx context.Context, sessionID string, attempts int, cause error) error {
	r.mu.RLock()
	hooks := append([]RetryExhaustedHook(nil), r.retryExhausted...)
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h(ctx, sessionID, attempts, cause); err != nil {
			return err
		}
	}
	return nil
}
