package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Engine   EngineConfig   `mapstructure:"engine"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// EngineConfig contains the batch processor settings.
type EngineConfig struct {
	// MaxConcurrent bounds how many tasks run at once.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"required,gt=0"`

	// MaxRetries is how many re-attempts a failing task gets.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// RetryDelaySeconds is the fixed wait between attempts.
	RetryDelaySeconds float64 `mapstructure:"retry_delay_seconds" validate:"gte=0"`

	// PollIntervalMS is the admission loop's sleep between checks.
	PollIntervalMS int `mapstructure:"poll_interval_ms" validate:"gt=0"`

	// TaskTimeoutSeconds bounds each handler attempt; 0 disables.
	TaskTimeoutSeconds float64 `mapstructure:"task_timeout_seconds" validate:"gte=0"`

	// SaveState controls snapshot persistence.
	SaveState bool `mapstructure:"save_state"`

	// StateFile is the snapshot path used by the file store backend.
	StateFile string `mapstructure:"state_file" validate:"required_if=SaveState true"`
}

// DatabaseConfig contains all database-related configuration settings.
// An empty URL selects the JSON file store backend instead.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains authentication settings for the control API.
// An empty secret disables authentication.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
}
