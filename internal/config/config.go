// Package config loads SDK configuration from the environment.
//
// Configuration sources, in order of precedence:
//   - process environment (COVE_* variables)
//   - a .env file in the working directory, if present
//   - built-in defaults
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const envPrefix = "COVE_"

const defaultTimeout = 30 * time.Second

// Config holds everything needed to talk to a management server.
type Config struct {
	// Connection settings
	Host        string // management server host, e.g. "backup.example.com"
	Username    string
	Password    string
	Token       string // pre-issued auth token; takes precedence over user/pass
	VerifySSL   bool
	Fingerprint string // optional SHA-256 certificate pin
	Timeout     time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, merging in a .env file
// when one exists in the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	cfg := &Config{
		Host:        getEnv("HOST", ""),
		Username:    getEnv("USERNAME", ""),
		Password:    getEnv("PASSWORD", ""),
		Token:       getEnv("TOKEN", ""),
		VerifySSL:   getEnvBool("VERIFY_SSL", true),
		Fingerprint: getEnv("FINGERPRINT", ""),
		Timeout:     getEnvDuration("TIMEOUT", defaultTimeout),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "auto"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("config: %sHOST is required", envPrefix)
	}
	if c.Token == "" && (c.Username == "" || c.Password == "") {
		return fmt.Errorf("config: either %sTOKEN or %sUSERNAME and %sPASSWORD are required", envPrefix, envPrefix, envPrefix)
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		log.Warn().Str("key", envPrefix+key).Str("value", val).Msg("Invalid boolean in environment, using default")
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return fallback
	}
	// Accept both bare seconds ("45") and Go duration syntax ("45s")
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		log.Warn().Str("key", envPrefix+key).Str("value", val).Msg("Invalid duration in environment, using default")
		return fallback
	}
	return parsed
}
