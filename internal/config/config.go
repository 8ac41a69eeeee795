package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Database
	SQLiteDBPath string

	// CSV import
	ImportMaxBytes int64
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  getEnvDuration("READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 10*time.Second),
		IdleTimeout:  getEnvDuration("IDLE_TIMEOUT", 60*time.Second),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finance.db"),

		ImportMaxBytes: getEnvInt64("IMPORT_MAX_BYTES", 10<<20),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	for name, d := range map[string]time.Duration{
		"read timeout":  c.ReadTimeout,
		"write timeout": c.WriteTimeout,
		"idle timeout":  c.IdleTimeout,
	} {
		if d < time.Second {
			errors = append(errors, fmt.Sprintf("invalid %s %v: must be at least 1 second", name, d))
		} else if d > time.Hour {
			errors = append(errors, fmt.Sprintf("invalid %s %v: must be at most 1 hour", name, d))
		}
	}

	if c.ImportMaxBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid import size limit %d: must be at least 1KB", c.ImportMaxBytes))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
