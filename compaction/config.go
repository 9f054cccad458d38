package compaction

import "fmt"

// Default settings values.
const (
	// DefaultReserveTokens is the headroom kept free below the context
	// window. The threshold trigger fires once reported usage climbs
	// above window - reserve, and the summary budget is carved out of
	// this reserve.
	DefaultReserveTokens = 16384

	// DefaultKeepRecentTokens is the estimated token budget of history
	// retained verbatim after a compaction.
	DefaultKeepRecentTokens = 20000
)

// Settings controls compaction behavior. Settings are injected by the
// owning session, not owned here.
type Settings struct {
	// Enabled gates all compaction. When false, PrepareCompaction and
	// Compact refuse to run.
	Enabled bool

	// ReserveTokens is the headroom kept free below the context
	// window. Must be positive.
	ReserveTokens int

	// KeepRecentTokens is the budget of recent history kept verbatim.
	// Zero is legal and means "keep as little as turn boundaries
	// allow".
	KeepRecentTokens int
}

// DefaultSettings returns enabled settings with the default budgets.
func DefaultSettings() Settings {
	return Settings{
		Enabled:          true,
		ReserveTokens:    DefaultReserveTokens,
		KeepRecentTokens: DefaultKeepRecentTokens,
	}
}

// ApplyDefaults fills zero values with defaults. Enabled is left alone:
// false is a meaningful setting.
func (s *Settings) ApplyDefaults() {
	if s.ReserveTokens == 0 {
		s.ReserveTokens = DefaultReserveTokens
	}
	if s.KeepRecentTokens == 0 {
		s.KeepRecentTokens = DefaultKeepRecentTokens
	}
}

// Validate checks the settings and returns an error if invalid.
func (s Settings) Validate() error {
	if s.ReserveTokens <= 0 {
		return fmt.Errorf("%w: reserve_tokens must be positive, got %d", ErrInvalidSettings, s.ReserveTokens)
	}
	if s.KeepRecentTokens < 0 {
		return fmt.Errorf("%w: keep_recent_tokens must be non-negative, got %d", ErrInvalidSettings, s.KeepRecentTokens)
	}
	return nil
}
