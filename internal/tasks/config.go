package tasks

import (
	"time"

	"github.com/vrwarp/versicle/internal/config"
)

// Config holds configuration for the background task queue. Reprocessing
// is IO-bound on the store, so the worker count stays small by default.
type Config struct {
	// Workers is the number of concurrent task workers.
	Workers int

	// MaxRetries is the default maximum retry attempts for failed tasks.
	MaxRetries int

	// RetryDelay is the default backoff duration between retries.
	RetryDelay time.Duration

	// TaskTimeout is the default timeout for task execution.
	TaskTimeout time.Duration

	// ReleaseAfter is when stuck tasks are released back to the queue.
	ReleaseAfter time.Duration

	// CleanupInterval is how often completed tasks are cleaned up.
	CleanupInterval time.Duration

	// RetentionDuration is how long completed tasks are kept.
	RetentionDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           2,
		MaxRetries:        3,
		RetryDelay:        1 * time.Minute,
		TaskTimeout:       5 * time.Minute,
		ReleaseAfter:      15 * time.Minute,
		CleanupInterval:   1 * time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}

// FromAppConfig maps the application's task settings onto a queue Config.
func FromAppConfig(cfg config.Tasks) Config {
	return Config{
		Workers:           cfg.Workers,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		TaskTimeout:       cfg.TaskTimeout,
		ReleaseAfter:      cfg.ReleaseAfter,
		CleanupInterval:   cfg.CleanupInterval,
		RetentionDuration: cfg.RetentionDuration,
	}
}
