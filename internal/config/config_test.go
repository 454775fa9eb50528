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
	if cfg.BackendTimeout != 10*time.Second {
		t.Errorf("expected default backend timeout 10s, got %s", cfg.BackendTimeout)
	}
	if cfg.ProbeInterval != 30*time.Second {
		t.Errorf("expected default probe interval 30s, got %s", cfg.ProbeInterval)
	}
	if cfg.RedisKeyPrefix != "telemed_sync:" {
		t.Errorf("unexpected default key prefix %q", cfg.RedisKeyPrefix)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BACKEND_BASE_URL", "https://api.clinic.example")
	t.Setenv("BACKEND_TIMEOUT", "2s")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("PROBE_INTERVAL", "5s")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("port = %s", cfg.Port)
	}
	if cfg.BackendBaseURL != "https://api.clinic.example" {
		t.Errorf("backend base url = %s", cfg.BackendBaseURL)
	}
	if cfg.BackendTimeout != 2*time.Second {
		t.Errorf("backend timeout = %s", cfg.BackendTimeout)
	}
	if !cfg.RedisTLS {
		t.Error("expected redis TLS enabled")
	}
	if cfg.ProbeInterval != 5*time.Second {
		t.Errorf("probe interval = %s", cfg.ProbeInterval)
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("BACKEND_TIMEOUT", "soon")
	cfg := Load()
	if cfg.BackendTimeout != 10*time.Second {
		t.Errorf("expected fallback, got %s", cfg.BackendTimeout)
	}
}
