// Package config loads the YAML configuration of the rrdpoold demo daemon.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/iamNilotpal/rrdpool/pkg/options"
)

// SourceSpec describes one datasource of an archive to create.
type SourceSpec struct {
	Name      string `yaml:"name"`
	Heartbeat int64  `yaml:"heartbeat"`
}

// ArchiveSpec describes one consolidated archive of a file to create.
type ArchiveSpec struct {
	Steps int `yaml:"steps"`
	Rows  int `yaml:"rows"`
}

// CreateSpec describes an archive file the daemon creates at start-up if
// it does not exist yet.
type CreateSpec struct {
	Path     string        `yaml:"path"`
	Step     int64         `yaml:"step"`
	Sources  []SourceSpec  `yaml:"sources"`
	Archives []ArchiveSpec `yaml:"archives"`
}

// Config is the daemon configuration.
type Config struct {
	Service         string       `yaml:"service"`
	Capacity        int          `yaml:"capacity"`
	LimitedCapacity bool         `yaml:"limitedCapacity"`
	DataDir         string       `yaml:"dataDir"`
	PreloadGlob     string       `yaml:"preloadGlob"`
	Create          []CreateSpec `yaml:"create"`
}

// Load reads and validates a configuration file, filling in defaults for
// omitted fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Config{
		Service:     "rrdpoold",
		Capacity:    options.DefaultCapacity,
		DataDir:     ".",
		PreloadGlob: "*.rrd",
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", cfg.Capacity)
	}

	return &cfg, nil
}
