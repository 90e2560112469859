package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Device
		Coalescer
		Checkpoint
		Devices
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}

	Database struct {
		Path string
	}

	Device struct {
		DisplayName string // shown on other devices in resume suggestions
	}

	Coalescer struct {
		Window time.Duration // debounce window for position writes
	}

	Checkpoint struct {
		Schedule string // cron format, minute resolution
		Keep     int    // checkpoints retained after compaction
	}

	Devices struct {
		PruneSchedule string        // cron format
		PruneHorizon  time.Duration // registry entries older than this are dropped
	}

	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
)

func defaultDeviceName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "versicle"
}

func NewConfig() *Config {
	v := viper.New()
	v.SetEnvPrefix("VERSICLE")
	v.AutomaticEnv()

	v.SetDefault("port", 8488)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("device_name", defaultDeviceName())

	// Position-write debounce. Values outside [500ms, 1s] are clamped by
	// the coalescer; the default sits mid-window.
	v.SetDefault("coalescer_window", "750ms")

	v.SetDefault("checkpoint_schedule", "0 */6 * * *") // every 6 hours
	v.SetDefault("checkpoint_keep", 3)

	v.SetDefault("devices_prune_schedule", "30 4 * * *") // daily, off-peak
	v.SetDefault("devices_prune_horizon", "2160h")       // 90 days

	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Device: Device{
			DisplayName: v.GetString("DEVICE_NAME"),
		},
		Coalescer: Coalescer{
			Window: v.GetDuration("COALESCER_WINDOW"),
		},
		Checkpoint: Checkpoint{
			Schedule: v.GetString("CHECKPOINT_SCHEDULE"),
			Keep:     v.GetInt("CHECKPOINT_KEEP"),
		},
		Devices: Devices{
			PruneSchedule: v.GetString("DEVICES_PRUNE_SCHEDULE"),
			PruneHorizon:  v.GetDuration("DEVICES_PRUNE_HORIZON"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
	}
}
