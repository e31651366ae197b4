package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	version := GetVersion()
	if version != "dev" && version != "unknown" {
		t.Logf("Version: %s", version)
	}
}

func TestLoadArgs_Defaults(t *testing.T) {
	cfg, err := LoadArgs([]string{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Port == "" {
		t.Error("Expected a default port")
	}
	if cfg.WorkerCount < 1 {
		t.Errorf("Expected positive worker count, got %d", cfg.WorkerCount)
	}
	if cfg.DefaultPostLimit < 1 {
		t.Errorf("Expected positive default post limit, got %d", cfg.DefaultPostLimit)
	}
	if cfg.DefaultUser == "" {
		t.Error("Expected a default user")
	}
	if Get() != cfg {
		t.Error("Expected Get to return the loaded configuration")
	}
}

func TestLoadArgs_Flags(t *testing.T) {
	cfg, err := LoadArgs([]string{
		"--db-path", "/tmp/feeds.db",
		"--worker-count", "3",
		"--sync-interval", "600",
		"--default-post-limit", "50",
		"--redis-addr", "localhost:6379",
		"--debug",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.DBPath != "/tmp/feeds.db" {
		t.Errorf("Expected DB path '/tmp/feeds.db', got '%s'", cfg.DBPath)
	}
	if cfg.WorkerCount != 3 {
		t.Errorf("Expected worker count 3, got %d", cfg.WorkerCount)
	}
	if cfg.SyncInterval != 600 {
		t.Errorf("Expected sync interval 600, got %d", cfg.SyncInterval)
	}
	if cfg.DefaultPostLimit != 50 {
		t.Errorf("Expected default post limit 50, got %d", cfg.DefaultPostLimit)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("Expected redis addr 'localhost:6379', got '%s'", cfg.RedisAddr)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}

func TestLoadArgs_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero workers", []string{"--worker-count", "0"}},
		{"zero post limit", []string{"--default-post-limit", "0"}},
		{"negative interval", []string{"--sync-interval=-1"}},
		{"zero fetch timeout", []string{"--fetch-timeout", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadArgs(tt.args); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
