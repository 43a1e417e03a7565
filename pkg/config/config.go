// Package config loads generator configuration from defaults, an optional
// YAML file, and MANIFESTO_-prefixed environment variables, in that order.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Manifest  ManifestConfig  `koanf:"manifest"`
	Modules   ModulesConfig   `koanf:"modules"`
	Archive   ArchiveConfig   `koanf:"archive"`
	Serve     ServeConfig     `koanf:"serve"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type ManifestConfig struct {
	Domain string `koanf:"domain"`
	ID     string `koanf:"id"`
}

type ModulesConfig struct {
	File string            `koanf:"file"`
	MCP  []MCPServerConfig `koanf:"mcp"`
}

// MCPServerConfig declares an MCP server to mine over stdio.
type MCPServerConfig struct {
	Name    string   `koanf:"name"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
}

type ArchiveConfig struct {
	Path string `koanf:"path"`
}

type ServeConfig struct {
	Addr string `koanf:"addr"`
}

// Load builds the configuration. path may be empty to skip the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("telemetry.exporter", "stdout")
	k.Set("modules.file", "modules.yaml")
	k.Set("archive.path", "manifests.db")
	k.Set("serve.addr", ":8080")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (MANIFESTO_LOG_LEVEL -> log.level)
	if err := k.Load(env.Provider("MANIFESTO_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "MANIFESTO_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
