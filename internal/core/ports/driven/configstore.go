package driven

import "time"

// ConfigStore provides access to application configuration as dot-notation keys
// (for example "vector.collection"). Implementations handle persistence and
// type conversion; missing or mistyped keys return the zero value.
type ConfigStore interface {
	// Get retrieves a raw value and whether the key exists.
	Get(key string) (any, bool)

	// GetString retrieves a string value.
	GetString(key string) string

	// GetInt retrieves an integer value.
	GetInt(key string) int

	// GetFloat retrieves a float value; integers are converted.
	GetFloat(key string) float64

	// GetBool retrieves a boolean value.
	GetBool(key string) bool

	// GetDuration parses a duration string such as "2s" or "24h".
	GetDuration(key string) time.Duration

	// GetStringSlice retrieves a string slice value.
	GetStringSlice(key string) []string

	// Set stores a value and persists immediately.
	Set(key string, value any) error

	// Save persists the current configuration.
	Save() error

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}
