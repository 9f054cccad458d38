package ui

// Default configuration values.
const (
	DefaultPageSize = 100
)

// Config holds viewer configuration.
type Config struct {
	// BasePath is the URL prefix where the viewer is mounted.
	// For example, if mounted at "/ui/", set BasePath to "/ui".
	// Defaults to empty string (root mount).
	BasePath string

	// PageSize caps the number of entries returned per listing.
	// Defaults to 100.
	PageSize int

	// Logger for structured logging.
	// If nil, logging is disabled.
	Logger Logger
}

// Logger interface for structured logging.
// Compatible with compaction.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{PageSize: DefaultPageSize}
}

// applyDefaults fills in default values for zero-valued fields.
func (c *Config) applyDefaults() {
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	if c.PageSize < 1 {
		return ErrInvalidConfig
	}
	return nil
}
