package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port        int
	MaxUploadMB int64
	LogLevel    string

	// Uploads
	UploadDir       string
	WaveformBuckets int // peaks per waveform summary

	// Simulated processing. Each job reports ProgressSteps+1 updates.
	ProgressSteps int
	UploadStep    time.Duration
	MasterStep    time.Duration
	StemsStep     time.Duration

	// How long finished jobs stay queryable
	JobRetention time.Duration

	// Unlocks the mastering and stems screens
	Premium bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:        envInt("STUDIO_PORT", 8080),
		MaxUploadMB: int64(envInt("STUDIO_MAX_UPLOAD_MB", 100)),
		LogLevel:    envStr("STUDIO_LOG_LEVEL", "info"),

		UploadDir:       envStr("STUDIO_UPLOAD_DIR", "/tmp/codystudio"),
		WaveformBuckets: envInt("STUDIO_WAVEFORM_BUCKETS", 100),

		ProgressSteps: envInt("STUDIO_PROGRESS_STEPS", 100),
		UploadStep:    envDuration("STUDIO_UPLOAD_STEP", 50*time.Millisecond),
		MasterStep:    envDuration("STUDIO_MASTER_STEP", 100*time.Millisecond),
		StemsStep:     envDuration("STUDIO_STEMS_STEP", 50*time.Millisecond),

		JobRetention: envDuration("STUDIO_JOB_RETENTION", 10*time.Minute),

		Premium: envBool("STUDIO_PREMIUM", true),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("250ms") or bare milliseconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
