package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config carries everything the process reads from the environment.
type Config struct {
	// HTTP server
	Port string

	// Database; empty selects the in-memory store.
	DatabaseURL string

	// Currency is a display label attached to formatted amounts. The ledger
	// performs no conversion; every amount is a plain 2-decimal value.
	Currency string

	// Auth (bearer JWT, HS256). Empty secret disables verification and the
	// API falls back to dev identity headers.
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// DevSeed provisions a demo account and sample ledger rows on boot.
	DevSeed bool
}

// Load reads configuration from the environment with defaults.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Currency:    strings.ToUpper(getEnv("CURRENCY", "TRY")),
		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_HS256_SECRET")),
		JWTIssuer:   strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		JWTAudience: strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
		DevSeed:     getEnvBool("DEV_SEED", false),
	}
}

// Validate returns an error describing every invalid field at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if len(c.Currency) != 3 {
		problems = append(problems, fmt.Sprintf("invalid currency %q: must be a 3-letter code", c.Currency))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	return v == "1" || v == "true" || v == "yes"
}
