package infra

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/pool_test")
	t.Setenv("ADMIN_JWT_SECRET", "test-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.UpstreamBaseURL != "https://api.kie.ai/api/v1" {
		t.Fatalf("unexpected upstream base url %q", cfg.UpstreamBaseURL)
	}
	if cfg.CreditThreshold != 10 {
		t.Fatalf("expected default threshold 10, got %v", cfg.CreditThreshold)
	}
	if cfg.AlertDedupWindow != time.Hour {
		t.Fatalf("expected 1h dedup window, got %v", cfg.AlertDedupWindow)
	}
	if cfg.PoolRefreshInterval != 5*time.Minute {
		t.Fatalf("expected 5m refresh interval, got %v", cfg.PoolRefreshInterval)
	}
	if cfg.MediaStore != "filesystem" {
		t.Fatalf("expected filesystem media store, got %q", cfg.MediaStore)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CREDIT_THRESHOLD", "25.5")
	t.Setenv("ALERT_DEDUP_WINDOW_MINUTES", "15")
	t.Setenv("MEDIA_STORE", "cloudinary")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.CreditThreshold != 25.5 {
		t.Fatalf("expected threshold 25.5, got %v", cfg.CreditThreshold)
	}
	if cfg.AlertDedupWindow != 15*time.Minute {
		t.Fatalf("expected 15m window, got %v", cfg.AlertDedupWindow)
	}
	if cfg.MediaStore != "cloudinary" {
		t.Fatalf("expected cloudinary, got %q", cfg.MediaStore)
	}
}

func TestLoadConfigMissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ADMIN_JWT_SECRET", "test-secret")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestLoadConfigMissingJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pool_test")
	t.Setenv("ADMIN_JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when ADMIN_JWT_SECRET is empty")
	}
}

func TestLoadConfigRejectsUnknownMediaStore(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MEDIA_STORE", "ftp")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown MEDIA_STORE")
	}
}

func TestLoadConfigRejectsNegativeThreshold(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CREDIT_THRESHOLD", "-1")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for negative CREDIT_THRESHOLD")
	}
}
