package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CURRENCY", "")
	t.Setenv("DEV_SEED", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("default port = %q", cfg.Port)
	}
	if cfg.Currency != "TRY" {
		t.Fatalf("default currency = %q", cfg.Currency)
	}
	if cfg.DatabaseURL != "" || cfg.DevSeed {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CURRENCY", "eur")
	t.Setenv("DEV_SEED", "yes")
	t.Setenv("JWT_HS256_SECRET", " s3cret ")

	cfg := Load()
	if cfg.Port != "9090" || cfg.Currency != "EUR" || !cfg.DevSeed {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.JWTSecret != "s3cret" {
		t.Fatalf("secret not trimmed: %q", cfg.JWTSecret)
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := &Config{Port: "not-a-port", Currency: "TOOLONG"}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	msg := err.Error()
	if !strings.Contains(msg, "port") || !strings.Contains(msg, "currency") {
		t.Fatalf("expected both problems reported, got %q", msg)
	}
}

func TestValidatePortRange(t *testing.T) {
	cfg := &Config{Port: "70000", Currency: "TRY"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected out-of-range port rejected")
	}
}
