package config

import (
	"testing"
	"time"

	"github.com/pawtrail/pushgate/internal/app/ports"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Bus.Path != "/events" {
		t.Errorf("Bus.Path = %q, want /events", cfg.Bus.Path)
	}
	if cfg.Ingress.PayloadMaxBytes != 262144 {
		t.Errorf("PayloadMaxBytes = %d, want 262144", cfg.Ingress.PayloadMaxBytes)
	}
	if !cfg.IsLocalDevelopment() {
		t.Error("IsLocalDevelopment() = false, want true with no env set")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PUSHGATE_ENV", "production")
	t.Setenv("PUSHGATE_PORT", "9090")
	t.Setenv("PUSHGATE_BUS_PATH", "push")
	t.Setenv("PUSHGATE_RATE_LIMIT_WEBHOOK", "120")
	t.Setenv("PUSHGATE_NONCE_TTL_SECONDS", "600")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Bus.Path != "/push" {
		t.Errorf("Bus.Path = %q, want /push", cfg.Bus.Path)
	}
	if cfg.Ingress.RateLimitWebhook != 120 {
		t.Errorf("RateLimitWebhook = %d, want 120", cfg.Ingress.RateLimitWebhook)
	}
	if cfg.IsLocalDevelopment() {
		t.Error("IsLocalDevelopment() = true, want false in production")
	}

	limits := cfg.Limits()
	if limits.NonceTTL != 10*time.Minute {
		t.Errorf("NonceTTL = %v, want 10m", limits.NonceTTL)
	}
	if limits.RatePerMinute[ports.ChannelWebhook] != 120 {
		t.Errorf("webhook rate = %d, want 120", limits.RatePerMinute[ports.ChannelWebhook])
	}
}

func TestLoadClampsOutOfRangeKnobs(t *testing.T) {
	t.Setenv("PUSHGATE_PAYLOAD_MAX_BYTES", "999999999")
	t.Setenv("PUSHGATE_NONCE_TTL_SECONDS", "5")
	t.Setenv("PUSHGATE_RATE_LIMIT_BUS", "100000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ingress.PayloadMaxBytes != 256<<10 {
		t.Errorf("PayloadMaxBytes = %d, want %d", cfg.Ingress.PayloadMaxBytes, 256<<10)
	}
	if cfg.Ingress.NonceTTLSeconds != 60 {
		t.Errorf("NonceTTLSeconds = %d, want 60", cfg.Ingress.NonceTTLSeconds)
	}
	if cfg.Ingress.RateLimitBus != 600 {
		t.Errorf("RateLimitBus = %d, want 600", cfg.Ingress.RateLimitBus)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("PUSHGATE_PORT", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want error for negative port")
	}
}

func TestParseHeaderList(t *testing.T) {
	t.Parallel()
	got := parseHeaderList("authorization=Bearer abc, x-team=pets,,bad")
	if got["authorization"] != "Bearer abc" || got["x-team"] != "pets" {
		t.Errorf("parseHeaderList() = %v", got)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
	if parseHeaderList("  ") != nil {
		t.Error("blank input should return nil")
	}
}
