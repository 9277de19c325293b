package configs

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("PORT", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PENDING_TTL", "")
	t.Setenv("RECONNECT_GRACE", "")
	t.Setenv("MODERATION_DRIVER", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("INVITE_HOST", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("expected development, got %q", cfg.Environment)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.PendingTTL != 2*time.Minute {
		t.Errorf("expected 2m pending ttl, got %s", cfg.PendingTTL)
	}
	if cfg.ReconnectGrace != 30*time.Second {
		t.Errorf("expected 30s grace, got %s", cfg.ReconnectGrace)
	}
	if cfg.ModerationDriver != ModerationSQLite || cfg.SQLitePath == "" {
		t.Errorf("expected sqlite driver with a path, got %q %q", cfg.ModerationDriver, cfg.SQLitePath)
	}
	if cfg.JWTSecret == "" {
		t.Error("development should fall back to a default secret")
	}
	if cfg.InviteHost != "localhost:8080" {
		t.Errorf("unexpected invite host %q", cfg.InviteHost)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"privileged port", map[string]string{"PORT": "80"}},
		{"non numeric port", map[string]string{"PORT": "abc"}},
		{"production without secret", map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": ""}},
		{"bad ttl", map[string]string{"PENDING_TTL": "soon"}},
		{"negative grace", map[string]string{"RECONNECT_GRACE": "-1s"}},
		{"unknown driver", map[string]string{"MODERATION_DRIVER": "redis"}},
		{"production postgres without dsn", map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": "s", "MODERATION_DRIVER": "postgres", "DATABASE_URL": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"ENVIRONMENT", "PORT", "JWT_SECRET", "PENDING_TTL", "RECONNECT_GRACE", "MODERATION_DRIVER", "DATABASE_URL"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := LoadConfig(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadClientConfig(t *testing.T) {
	t.Setenv("LT_SERVER_URL", "ws://example.test/ws")
	t.Setenv("LT_MAX_RETRIES", "5")
	t.Setenv("LT_BASE_BACKOFF", "100ms")
	t.Setenv("LT_MAX_BACKOFF", "2s")
	t.Setenv("LT_DIAL_TIMEOUT", "")

	cfg, err := LoadClientConfig()
	if err != nil {
		t.Fatalf("LoadClientConfig failed: %v", err)
	}
	if cfg.ServerURL != "ws://example.test/ws" || cfg.MaxRetries != 5 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.BaseBackoff != 100*time.Millisecond || cfg.MaxBackoff != 2*time.Second {
		t.Errorf("unexpected backoff %s/%s", cfg.BaseBackoff, cfg.MaxBackoff)
	}
	if cfg.DialTimeout != DefaultClientConfig().DialTimeout {
		t.Errorf("expected default dial timeout, got %s", cfg.DialTimeout)
	}

	t.Setenv("LT_MAX_BACKOFF", "10ms")
	if _, err := LoadClientConfig(); err == nil {
		t.Error("expected error when max backoff is below base backoff")
	}
}
