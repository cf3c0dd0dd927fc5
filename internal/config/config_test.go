package config

import (
	"os"
	"testing"
)

func TestConfigLoad_Defaults(t *testing.T) {
	_ = os.Unsetenv("ATRIUM_DB_DRIVER")
	_ = os.Unsetenv("ATRIUM_HTTP_PORT")
	_ = os.Unsetenv("ATRIUM_QUEUE_SIZE")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.HTTPPort != 8080 || cfg.QueueSize != 256 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MemoryWindowDays != 90 || cfg.AutomationLookbackDays != 30 || !cfg.AutomationGuard {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level default: %q", cfg.LogLevel)
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	_ = os.Setenv("ATRIUM_MEMORY_WINDOW_DAYS", "14")
	defer func() { _ = os.Unsetenv("ATRIUM_MEMORY_WINDOW_DAYS") }()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.MemoryWindowDays != 14 {
		t.Fatalf("memory window env override failed, got %d", cfg.MemoryWindowDays)
	}
}

func TestConfigLoad_RejectsUnknownDriver(t *testing.T) {
	_ = os.Setenv("ATRIUM_DB_DRIVER", "oracle")
	defer func() { _ = os.Unsetenv("ATRIUM_DB_DRIVER") }()

	if _, err := New(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestConfigLoad_PostgresRequiresDSN(t *testing.T) {
	_ = os.Setenv("ATRIUM_DB_DRIVER", "postgres")
	_ = os.Unsetenv("ATRIUM_POSTGRES_DSN")
	defer func() { _ = os.Unsetenv("ATRIUM_DB_DRIVER") }()

	if _, err := New(); err == nil {
		t.Fatal("expected error when postgres has no DSN")
	}
}

func TestGetHTTPAddr(t *testing.T) {
	cfg := NewForTesting()
	if cfg.GetHTTPAddr() != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.GetHTTPAddr())
	}
	if !cfg.IsTesting() || cfg.IsProduction() {
		t.Fatal("testing config misclassified")
	}
}
