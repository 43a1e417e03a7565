package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Telemetry.Exporter != "stdout" {
		t.Fatalf("unexpected telemetry default: %+v", cfg.Telemetry)
	}
	if cfg.Serve.Addr != ":8080" {
		t.Fatalf("unexpected serve default: %+v", cfg.Serve)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifesto.yaml")
	content := `
log:
  level: debug
  format: json
manifest:
  domain: painting
  id: app-1
modules:
  file: /etc/manifesto/modules.yaml
  mcp:
    - name: canvas
      command: canvas-server
      args: ["--stdio"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("file layer not applied: %+v", cfg.Log)
	}
	if cfg.Manifest.Domain != "painting" || cfg.Manifest.ID != "app-1" {
		t.Fatalf("manifest section not applied: %+v", cfg.Manifest)
	}
	if cfg.Modules.File != "/etc/manifesto/modules.yaml" {
		t.Fatalf("modules section not applied: %+v", cfg.Modules)
	}
	if len(cfg.Modules.MCP) != 1 || cfg.Modules.MCP[0].Command != "canvas-server" {
		t.Fatalf("mcp servers not applied: %+v", cfg.Modules.MCP)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifesto.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("MANIFESTO_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Fatalf("env should override file, got %+v", cfg.Log)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
