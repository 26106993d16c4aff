// Package config carries process configuration: immutable environment
// values read at startup and the mutable settings document persisted under
// the cache root.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config holds the environment-derived startup configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port int
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFile receives a copy of the log when set.
	LogFile string
	// DataDir is the cache/settings root, default ~/.subtitle-cache.
	DataDir string
	// CatalogBaseURL overrides the public catalog endpoint.
	CatalogBaseURL string
	// IndexRescanSchedule is the cron spec for the subtitle index rescan.
	IndexRescanSchedule string
}

// FromEnv reads configuration from the environment with defaults.
func FromEnv() Config {
	return Config{
		Port:                envInt("PORT", 8080),
		LogLevel:            envString("LOG_LEVEL", "info"),
		LogFile:             envString("LOG_FILE", ""),
		DataDir:             envString("DATA_DIR", defaultDataDir()),
		CatalogBaseURL:      envString("CATALOG_BASE_URL", ""),
		IndexRescanSchedule: envString("INDEX_RESCAN_SCHEDULE", "@every 6h"),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".subtitle-cache"
	}
	return filepath.Join(home, ".subtitle-cache")
}

func envString(key, fallback string) string {
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
