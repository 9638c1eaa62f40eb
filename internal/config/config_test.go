package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if cfg.IsProduction() {
		t.Error("development env must not report production")
	}
	if cfg.TelnyxSignatureMaxSkew != 5*time.Minute {
		t.Errorf("expected 5m signature skew, got %s", cfg.TelnyxSignatureMaxSkew)
	}
	if cfg.BridgeQueueCapacity != 64 {
		t.Errorf("expected bridge queue capacity 64, got %d", cfg.BridgeQueueCapacity)
	}
	if cfg.AgentSIPDomain == "" {
		t.Error("expected a default agent SIP domain")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("BRIDGE_ANSWER_SETTLE", "750ms")
	t.Setenv("TELNYX_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("REDIS_TLS", "true")

	cfg := Load()

	if !cfg.IsProduction() {
		t.Error("expected production env")
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.BridgeAnswerSettle != 750*time.Millisecond {
		t.Errorf("expected 750ms answer settle, got %s", cfg.BridgeAnswerSettle)
	}
	if cfg.TelnyxRetryMaxAttempts != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.TelnyxRetryMaxAttempts)
	}
	if !cfg.RedisTLS {
		t.Error("expected redis TLS enabled")
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("BRIDGE_QUEUE_CAPACITY", "not-a-number")
	t.Setenv("BRIDGE_CLAIM_TTL", "bogus")

	cfg := Load()

	if cfg.BridgeQueueCapacity != 64 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.BridgeQueueCapacity)
	}
	if cfg.BridgeClaimTTL != time.Hour {
		t.Errorf("invalid duration should fall back to default, got %s", cfg.BridgeClaimTTL)
	}
}
