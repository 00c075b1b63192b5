package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DEFAULT_CURRENCY", "")
	t.Setenv("MIN_LISTING_PRICE", "")
	t.Setenv("CACHE_TTL_MIN", "")

	cfg := FromEnv()
	if cfg.DefaultCurrency != "EUR" {
		t.Errorf("DefaultCurrency: got %q, want EUR", cfg.DefaultCurrency)
	}
	if cfg.MinListingPrice != 20 {
		t.Errorf("MinListingPrice: got %v, want 20", cfg.MinListingPrice)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL: got %v, want 1h", cfg.CacheTTL)
	}
	if cfg.MinSpecsBeforeAI != 3 {
		t.Errorf("MinSpecsBeforeAI: got %d, want 3", cfg.MinSpecsBeforeAI)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DEFAULT_CURRENCY", "usd")
	t.Setenv("MIN_LISTING_PRICE", "35.5")
	t.Setenv("WALLAPOP_ENABLED", "true")
	t.Setenv("USER_AGENTS", "UA one, with comma | UA two")
	t.Setenv("MAX_CONCURRENCY", "not-a-number")

	cfg := FromEnv()
	if cfg.DefaultCurrency != "USD" {
		t.Errorf("DefaultCurrency: got %q, want USD", cfg.DefaultCurrency)
	}
	if cfg.MinListingPrice != 35.5 {
		t.Errorf("MinListingPrice: got %v, want 35.5", cfg.MinListingPrice)
	}
	if !cfg.WallapopEnabled {
		t.Error("WallapopEnabled should be true")
	}
	if len(cfg.UserAgents) != 2 || cfg.UserAgents[0] != "UA one, with comma" {
		t.Errorf("UserAgents: got %q", cfg.UserAgents)
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency should fall back to 4 on bad input, got %d", cfg.MaxConcurrency)
	}
	if cfg.UserAgent(3) != "UA two" {
		t.Errorf("UserAgent(3): got %q, want rotation to UA two", cfg.UserAgent(3))
	}
}
