package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultTheater     = "AMC Goob Corp"
)

// Config holds runtime settings read from the environment.
type Config struct {
	APIURL      string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	Mock        bool
	LogFile     string
	Theater     string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Timeout:     defaultTimeout,
		MaxAttempts: defaultMaxAttempts,
		Theater:     defaultTheater,
	}
}

// Load reads an optional .env file from the working directory and then the
// USHER_* environment variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Default()
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(os.Getenv("USHER_API_URL")), "/")
	cfg.APIKey = strings.TrimSpace(os.Getenv("USHER_API_KEY"))
	cfg.LogFile = strings.TrimSpace(os.Getenv("USHER_LOG_FILE"))
	if theater := strings.TrimSpace(os.Getenv("USHER_THEATER")); theater != "" {
		cfg.Theater = theater
	}

	if raw := strings.TrimSpace(os.Getenv("USHER_TIMEOUT")); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return Config{}, fmt.Errorf("invalid USHER_TIMEOUT %q", raw)
		}
		cfg.Timeout = timeout
	}
	if raw := strings.TrimSpace(os.Getenv("USHER_MAX_ATTEMPTS")); raw != "" {
		attempts, err := strconv.Atoi(raw)
		if err != nil || attempts < 1 {
			return Config{}, fmt.Errorf("invalid USHER_MAX_ATTEMPTS %q", raw)
		}
		cfg.MaxAttempts = attempts
	}
	if raw := strings.TrimSpace(os.Getenv("USHER_MOCK")); raw != "" {
		mock, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid USHER_MOCK %q", raw)
		}
		cfg.Mock = mock
	}
	return cfg, nil
}

// UseMock reports whether canned data should be served instead of calling
// the schedule API.
func (c Config) UseMock() bool {
	return c.Mock || c.APIURL == ""
}
