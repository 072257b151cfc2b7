package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds project-level settings loaded from netreduce.yml.
type ProjectConfig struct {
	OutputDir      string   `yaml:"outputDir,omitempty"`
	TrackerDB      string   `yaml:"trackerDB,omitempty"`
	DevicePatterns []string `yaml:"devicePatterns,omitempty"`
	MaxPasses      int      `yaml:"maxPasses,omitempty"`
	Verbose        bool     `yaml:"verbose,omitempty"`
}

// Load attempts to read netreduce.yml or netreduce.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"netreduce.yml", "netreduce.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}
