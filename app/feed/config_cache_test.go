package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeSeed(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCacheLoadValidConfig(t *testing.T) {
	tempDir := t.TempDir()

	writeSeed(t, tempDir, "golang.yml", `
user: "alice"
url: "https://example.com/feed.xml"
urls:
  - "https://example.org/atom.xml"
  - "https://example.com/feed.xml"
post_limit: 25
reg_exp: "Go"
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 config, got %d", configCache.GetConfigCount())
	}

	config, err := configCache.GetConfig("golang")
	if err != nil {
		t.Fatal(err)
	}

	want := &SeedConfig{
		Name:      "golang",
		User:      "alice",
		URL:       "https://example.com/feed.xml",
		URLs:      []string{"https://example.org/atom.xml", "https://example.com/feed.xml"},
		PostLimit: 25,
		RegExp:    "Go",
	}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Errorf("Seed mismatch (-want +got):\n%s", diff)
	}

	links := config.Links()
	if len(links) != 2 {
		t.Fatalf("Expected 2 distinct links, got %v", links)
	}
	if links[0] != "https://example.com/feed.xml" || links[1] != "https://example.org/atom.xml" {
		t.Errorf("Unexpected link order: %v", links)
	}
}

func TestConfigCacheMissingDirectory(t *testing.T) {
	configCache := NewConfigCache(filepath.Join(t.TempDir(), "missing"))
	if err := configCache.Run(); err != nil {
		t.Errorf("Expected missing directory to be ignored, got %v", err)
	}
	if configCache.GetConfigCount() != 0 {
		t.Errorf("Expected 0 configs, got %d", configCache.GetConfigCount())
	}
}

func TestConfigCacheInvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"no links", `post_limit: 5`, "url"},
		{"negative limit", "url: \"https://example.com\"\npost_limit: -1", "post limit"},
		{"bad regexp", "url: \"https://example.com\"\nreg_exp: \"(\"", "invalid filter expression"},
		{"bad yaml", "url: [", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeSeed(t, tempDir, "seed.yml", tt.content)

			err := NewConfigCache(tempDir).Run()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("Expected error containing '%s', got '%v'", tt.errText, err)
			}
		})
	}
}

func TestConfigCacheGetConfigsSorted(t *testing.T) {
	tempDir := t.TempDir()
	writeSeed(t, tempDir, "b.yml", `url: "https://b.example.com"`)
	writeSeed(t, tempDir, "a.yml", `url: "https://a.example.com"`)
	writeSeed(t, tempDir, "ignored.txt", `url: "https://c.example.com"`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	configs := configCache.GetConfigs()
	if len(configs) != 2 {
		t.Fatalf("Expected 2 configs, got %d", len(configs))
	}
	if configs[0].Name != "a" || configs[1].Name != "b" {
		t.Errorf("Expected configs sorted by name, got %s, %s", configs[0].Name, configs[1].Name)
	}

	if _, err := configCache.GetConfig("missing"); err == nil {
		t.Error("Expected error for unknown config")
	}
}
