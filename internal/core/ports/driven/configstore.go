package driven

import (
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// ConfigStore provides access to application configuration.
// Implementations handle persistence (e.g., TOML files) and type conversion.
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString returns empty string if key doesn't exist or isn't a string.
	GetString(key string) string

	// GetInt returns 0 if key doesn't exist or isn't an integer.
	GetInt(key string) int

	GetFloat(key string) float64

	GetBool(key string) bool

	// GetDuration returns 0 for a missing key and an error for a malformed one.
	GetDuration(key string) (time.Duration, error)

	// GetStringSlice returns nil if key doesn't exist or isn't a slice.
	GetStringSlice(key string) []string

	// Keys lists every configured key, sorted.
	Keys() []string

	// Set stores a configuration value.
	// The value is persisted immediately.
	Set(key string, value any) error

	Save() error
	Load() error
	Path() string

	// Settings resolves the typed client configuration over defaults.
	Settings() (domain.Settings, error)
}
