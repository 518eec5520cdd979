package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// config is pagedb's startup configuration, loaded from a YAML file (see
// pagedb.yaml) and overridable by flags.
type config struct {
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
}

func defaultConfig() config {
	return config{DataDir: "./data", LogLevel: "info"}
}

// loadConfig reads path if it exists, layering its fields over the
// defaults; a missing file is not an error — pagedb runs fine unconfigured.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
