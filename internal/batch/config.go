package batch

import "time"

// Config holds configuration for the batch processor.
type Config struct {
	// MaxConcurrent bounds how many tasks may run at the same time.
	MaxConcurrent int

	// MaxRetries is the number of re-attempts a failing task is given
	// after its first attempt before it fails permanently.
	MaxRetries int

	// RetryDelay is the fixed wait between a failed attempt and the
	// next one. No jitter, no exponential growth.
	RetryDelay time.Duration

	// PollInterval is how long the admission loop sleeps between
	// checks when no slot or no task is available.
	PollInterval time.Duration

	// TaskTimeout, when non-zero, bounds each handler attempt via
	// context cancellation. Zero means no per-task timeout.
	TaskTimeout time.Duration

	// SaveState controls whether every state-changing event is
	// persisted through the snapshot store.
	SaveState bool
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 3,
		MaxRetries:    2,
		RetryDelay:    5 * time.Second,
		PollInterval:  500 * time.Millisecond,
		TaskTimeout:   0,
		SaveState:     true,
	}
}
