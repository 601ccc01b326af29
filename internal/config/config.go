// Package config loads the optional YAML server configuration file. CLI
// flags (parsed separately with kong in cmd/rtmp-server) take precedence over
// whatever a config file sets, field by field.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Hooks mirrors server.Config's hook knobs in a YAML-friendly shape.
type Hooks struct {
	Scripts     []string `yaml:"scripts"`
	Webhooks    []string `yaml:"webhooks"`
	StdioFormat string   `yaml:"stdio_format"`
	Timeout     string   `yaml:"timeout"`
	Concurrency int      `yaml:"concurrency"`
}

// File is the shape of the on-disk YAML configuration.
type File struct {
	ListenAddr    string `yaml:"listen_addr"`
	ChunkSize     uint32 `yaml:"chunk_size"`
	WindowAckSize uint32 `yaml:"window_ack_size"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	MetricsAddr   string `yaml:"metrics_addr"`
	Hooks         Hooks  `yaml:"hooks"`
}

// Load reads and parses a YAML config file. A path that cannot be read
// (including a missing file) is returned as an error; callers decide whether
// to call Load at all when --config is unset.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &f, nil
}
