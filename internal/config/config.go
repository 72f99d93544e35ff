// Package config loads application configuration from environment variables.
// A .env file in the working directory is read first when present; values
// already set in the environment win.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; every variable has a default so the tool runs
// without any setup.
type Config struct {
	Env          string       // APP_ENV: dev, test or prod
	DBPath       string       // DB_PATH: SQLite file, parent dir is created on open
	ImportDir    string       // IMPORT_DIR: directory holding the CSV seed files
	ReportDir    string       // REPORT_DIR: where text reports are written
	PasswordSalt string       // PASSWORD_SALT: salt for imported password hashes
	Log          LogConfig    // LOG_*
	Redis        RedisConfig  // REDIS_*
	Cache        CacheConfig  // CACHE_*
	Events       EventsConfig // EVENTS_*, RABBITMQ_URL
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output string // stdout, stderr or a file path
}

// Load reads configuration values from the environment and returns a Config.
func Load() Config {
	_ = godotenv.Load() // a missing .env is fine
	return Config{
		Env:          envStr("APP_ENV", "dev"),
		DBPath:       envStr("DB_PATH", "data/service_center.db"),
		ImportDir:    envStr("IMPORT_DIR", "data"),
		ReportDir:    envStr("REPORT_DIR", "reports"),
		PasswordSalt: envStr("PASSWORD_SALT", "service_center_salt"),
		Log: LogConfig{
			Level:  envStr("LOG_LEVEL", "info"),
			Format: envStr("LOG_FORMAT", "text"),
			Output: envStr("LOG_OUTPUT", "stderr"),
		},
		Redis:  LoadRedisConfig(),
		Cache:  LoadCacheConfig(),
		Events: LoadEventsConfig(),
	}
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
