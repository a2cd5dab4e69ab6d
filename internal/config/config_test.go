package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected default addr: %s", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Fatalf("unexpected shutdown timeout: %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Masker.Timeout != 60*time.Second {
		t.Fatalf("unexpected masker timeout: %s", cfg.Masker.Timeout)
	}
	if cfg.Redis.NotifyChannel != "piimask:events" {
		t.Fatalf("unexpected notify channel: %s", cfg.Redis.NotifyChannel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PIIMASK_SERVER_ADDR", ":9999")
	t.Setenv("PIIMASK_MASKER_BASE_URL", "http://localhost:7070")
	t.Setenv("PIIMASK_AUTH_JWT_SECRET", "override-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("env override not applied: %s", cfg.Server.Addr)
	}
	if cfg.Masker.BaseURL != "http://localhost:7070" {
		t.Fatalf("env override not applied: %s", cfg.Masker.BaseURL)
	}
	if cfg.Auth.JWTSecret != "override-secret" {
		t.Fatalf("env override not applied: %s", cfg.Auth.JWTSecret)
	}
}
