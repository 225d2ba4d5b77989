package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

const minimalYAML = `
log:
  level: info
  console:
    enabled: true
http:
  listen: ":8080"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestNewManagerLoadsDefaults(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	m, err := NewManager(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cfg := m.GetConfig()
	if cfg.HTTP.Listen != ":8080" {
		t.Errorf("HTTP.Listen = %q, want :8080", cfg.HTTP.Listen)
	}
	if cfg.HTTP.Path != "/mcp" {
		t.Errorf("HTTP.Path = %q, want /mcp (default)", cfg.HTTP.Path)
	}
	if cfg.Session.Capacity != 10000 {
		t.Errorf("Session.Capacity = %d, want 10000 (default)", cfg.Session.Capacity)
	}
}

func TestNewManagerRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, minimalYAML+"\nbogus_field: true\n")
	if _, err := NewManager(path, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestNewManagerRejectsBadMQTTMode(t *testing.T) {
	path := writeConfig(t, minimalYAML+"\nmqtt:\n  enabled: true\n  mode: carrier-pigeon\n")
	if _, err := NewManager(path, zap.NewNop()); err == nil {
		t.Fatal("expected error for invalid mqtt.mode")
	}
}

func TestReloadSwapsSnapshot(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	m, err := NewManager(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := os.WriteFile(path, []byte(minimalYAML+"\ntcp:\n  listen: \":9090\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if got := m.GetConfig().TCP.Listen; got != ":9090" {
		t.Errorf("TCP.Listen after reload = %q, want :9090", got)
	}
}

func TestReloadKeepsOldSnapshotOnFailure(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	m, err := NewManager(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := os.WriteFile(path, []byte("not: valid: yaml: at: all:\n  -\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := m.Reload(); err == nil {
		t.Fatal("expected Reload to fail on malformed YAML")
	}

	if got := m.GetConfig().HTTP.Listen; got != ":8080" {
		t.Errorf("HTTP.Listen after failed reload = %q, want :8080 (unchanged)", got)
	}
}
