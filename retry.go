package agentctx

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/agentctx/agentctx/compaction"
)

// Default retry configuration.
const (
	DefaultMaxRetryAttempts = 5
	DefaultRetryBaseDelay   = time.Second
)

// recoverablePattern matches transient transport and rate errors:
// overload, rate limits, 5xx statuses, request timeouts and connection
// resets. Everything else is surfaced immediately.
var recoverablePattern = regexp.MustCompile(`(?i)(overloaded|rate limit|too many requests|request timeout|connection reset|connection refused|broken pipe|internal server error|bad gateway|service unavailable|gateway timeout|\b(408|429|500|502|503|504)\b)`)

// IsRecoverable reports whether err should be retried with backoff.
// Overflow errors are never recoverable here: they belong to the
// overflow compaction trigger, and routing them into the retry loop
// would race the two mechanisms on the same failure.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if IsOverflowError(err) {
		return false
	}
	return recoverablePattern.MatchString(err.Error())
}

// RetryConfig configures the retry controller.
type RetryConfig struct {
	// MaxAttempts is the number of retries before giving up.
	MaxAttempts int

	// BaseDelay is the wait before the first retry; each further
	// attempt doubles it.
	BaseDelay time.Duration
}

// ApplyDefaults fills zero values with defaults.
func (c *RetryConfig) ApplyDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxRetryAttempts
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = DefaultRetryBaseDelay
	}
}

// RetryController tracks consecutive recoverable failures for one
// session and schedules exponential backoff between attempts. It is
// owned by the session and not safe for concurrent use.
type RetryController struct {
	config   RetryConfig
	attempts int
	logger   compaction.Logger
}

// NewRetryController creates a controller with the given config.
func NewRetryController(config RetryConfig, logger compaction.Logger) *RetryController {
	config.ApplyDefaults()
	if logger == nil {
		logger = compaction.NopLogger{}
	}
	return &RetryController{config: config, logger: logger}
}

// Attempts returns the current consecutive failure count.
func (r *RetryController) Attempts() int {
	return r.attempts
}

// RecordFailure registers a recoverable failure and returns the delay
// to wait before resubmitting. When the attempt limit is exceeded it
// resets the counter and returns ErrRetryExhausted; the exhaustion is
// reported once, not per attempt.
func (r *RetryController) RecordFailure(err error) (time.Duration, error) {
	r.attempts++
	if r.attempts > r.config.MaxAttempts {
		attempts := r.attempts
		r.attempts = 0
		return 0, fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempts-1, err)
	}

	delay := r.Delay(r.attempts)
	r.logger.Warn("recoverable failure, retry scheduled",
		"attempt", r.attempts,
		"max_attempts", r.config.MaxAttempts,
		"delay_ms", delay.Milliseconds(),
		"error", err,
	)
	return delay, nil
}

// Delay returns the backoff for the given attempt number (1-based):
// baseDelay × 2^(attempt−1).
func (r *RetryController) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return r.config.BaseDelay << (attempt - 1)
}

// RecordSuccess resets the failure counter after a successful turn and
// reports whether prior retries had happened.
func (r *RetryController) RecordSuccess() bool {
	had := r.attempts > 0
	if had {
		r.logger.Info("turn succeeded after retries", "attempts", r.attempts)
	}
	r.attempts = 0
	return had
}

// Wait blocks for the given delay or until the context is cancelled.
// Cancellation returns the context's error so callers can distinguish
// an aborted wait from an elapsed one.
func (r *RetryController) Wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
