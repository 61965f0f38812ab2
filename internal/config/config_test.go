package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Wikipedia.Language != "en" {
		t.Errorf("expected language 'en', got %q", cfg.Wikipedia.Language)
	}

	if cfg.NLP.Backend != "prose" {
		t.Errorf("expected backend 'prose', got %q", cfg.NLP.Backend)
	}

	if !cfg.NLP.Coreference {
		t.Error("expected coreference enabled by default")
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
wikipedia:
  language: de
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Wikipedia.Language != "de" {
		t.Errorf("expected language 'de', got %q", cfg.Wikipedia.Language)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.NLP.RemoteURL != "http://localhost:8081" {
		t.Errorf("expected default remote_url, got %q", cfg.NLP.RemoteURL)
	}
	if cfg.Wikipedia.Endpoint() != "https://de.wikipedia.org/w/api.php" {
		t.Errorf("unexpected endpoint %q", cfg.Wikipedia.Endpoint())
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Wikipedia.Timeout() != 15*time.Second {
		t.Errorf("expected 15s timeout, got %v", cfg.Wikipedia.Timeout())
	}
	if cfg.Server.SessionTTL() != 30*time.Minute {
		t.Errorf("expected 30m session ttl, got %v", cfg.Server.SessionTTL())
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.MaxSessions != 256 {
		t.Errorf("expected 256 max sessions, got %d", cfg.Server.MaxSessions)
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestEndpointOverride(t *testing.T) {
	w := Wikipedia{Language: "en", APIURL: "http://127.0.0.1:1234/api.php"}
	if w.Endpoint() != "http://127.0.0.1:1234/api.php" {
		t.Errorf("expected override endpoint, got %q", w.Endpoint())
	}
}
