package hooks

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/agentctx/agentctx/compaction"
	"github.com/agentctx/agentctx/types"
)

// LoggingHooks provides built-in logging hooks for observability.
type LoggingHooks struct {
	logger *log.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger.
func NewLoggingHooks(logger *log.Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// DefaultLoggingHooks creates logging hooks with the default logger.
func DefaultLoggingHooks() *LoggingHooks {
	return &LoggingHooks{logger: log.Default()}
}

// Register attaches all logging hooks to the registry.
func (h *LoggingHooks) Register(r *Registry) {
	r.OnTurnCompleted(h.TurnCompleted)
	r.OnBeforeCompaction(h.BeforeCompaction)
	r.OnAfterCompaction(h.AfterCompaction)
	r.OnRetryScheduled(h.RetryScheduled)
	r.OnRetrySucceeded(h.RetrySucceeded)
	r.OnRetryExhausted(h.RetryExhausted)
}

// TurnCompleted logs a completed assistant turn. entry may be nil when
// the caller observed a turn it did not record.
func (h *LoggingHooks) TurnCompleted(ctx context.Context, sessionID string, entry *types.Entry) error {
	if entry == nil {
		h.logger.Printf("[agentctx] Turn completed for session %s", sessionID)
		return nil
	}
	tokens := entry.Usage.ContextTotal()
	h.logger.Printf("[agentctx] Turn completed for session %s: stop_reason=%s context_tokens=%d", sessionID, entry.StopReason, tokens)
	return nil
}

// BeforeCompaction logs the start of a compaction.
func (h *LoggingHooks) BeforeCompaction(ctx context.Context, sessionID string) error {
	h.logger.Printf("[agentctx] Starting compaction for session %s", sessionID)
	return nil
}

// AfterCompaction logs the result of a compaction.
func (h *LoggingHooks) AfterCompaction(ctx context.Context, sessionID string, result *compaction.Result) error {
	h.logger.Printf("[agentctx] Compaction complete for session %s: tokens_before=%d split_turn=%t modified_files=%d (%.0fms)",
		sessionID, result.TokensBefore, result.SplitTurn, len(result.Details.ModifiedFiles),
		float64(result.Duration.Milliseconds()))
	return nil
}

// RetryScheduled logs a scheduled retry.
func (h *LoggingHooks) RetryScheduled(ctx context.Context, sessionID string, attempt int, delay time.Duration, cause error) error {
	h.logger.Printf("[agentctx] Retry %d scheduled for session %s in %v: %v", attempt, sessionID, delay, cause)
	return nil
}

// RetrySucceeded logs recovery after retries.
func (h *LoggingHooks) RetrySucceeded(ctx context.Context, sessionID string, attempts int) error {
	h.logger.Printf("[agentctx] Session %s recovered after %d retries", sessionID, attempts)
	return nil
}

// RetryExhausted logs terminal retry failure.
func (h *LoggingHooks) RetryExhausted(ctx context.Context, sessionID string, attempts int, cause error) error {
	h.logger.Printf("[agentctx] Session %s exhausted %d retries: %v", sessionID, attempts, cause)
	return nil
}

// MetricsHooks collects metrics for monitoring.
type MetricsHooks struct {
	OnMetric func(name string, value float64, tags map[string]string)
}

// NewMetricsHooks creates metrics collection hooks.
func NewMetricsHooks(onMetric func(string, float64, map[string]string)) *MetricsHooks {
	return &MetricsHooks{OnMetric: onMetric}
}

// Register attaches all metrics hooks to the registry.
func (h *MetricsHooks) Register(r *Registry) {
	r.OnTurnCompleted(h.TurnCompleted)
	r.OnAfterCompaction(h.AfterCompaction)
	r.OnRetryScheduled(h.RetryScheduled)
}

// TurnCompleted records turn token metrics.
func (h *MetricsHooks) TurnCompleted(ctx context.Context, sessionID string, entry *types.Entry) error {
	if entry != nil && entry.Usage != nil {
		h.OnMetric("agent.tokens.input", float64(entry.Usage.InputTokens), nil)
		h.OnMetric("agent.tokens.output", float64(entry.Usage.OutputTokens), nil)
		h.OnMetric("agent.tokens.context", float64(entry.Usage.ContextTotal()), nil)
	}
	return nil
}

// AfterCompaction records compaction metrics.
func (h *MetricsHooks) AfterCompaction(ctx context.Context, sessionID string, result *compaction.Result) error {
	h.OnMetric("agent.compaction.tokens_before", float64(result.TokensBefore), nil)
	h.OnMetric("agent.compaction.duration_ms", float64(result.Duration.Milliseconds()), nil)
	if result.SplitTurn {
		h.OnMetric("agent.compaction.split_turn", 1, nil)
	}
	return nil
}

// RetryScheduled records retry metrics.
func (h *MetricsHooks) RetryScheduled(ctx context.Context, sessionID string, attempt int, delay time.Duration, cause error) error {
	h.OnMetric("agent.retry.scheduled", 1, map[string]string{"attempt": strconv.Itoa(attempt)})
	return nil
}
