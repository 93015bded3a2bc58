package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// config holds process settings. Values may come from a YAML file; flags
// override anything set there.
type config struct {
	Address  string   `yaml:"address"`
	Port     int      `yaml:"port"`
	Watch    string   `yaml:"watch"`
	Event    string   `yaml:"event"`
	Verbose  bool     `yaml:"verbose"`
	Captures []string `yaml:"captures"`
}

func defaultConfig() config {
	return config{Address: "127.0.0.1", Port: 4000, Event: "cpu"}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c *config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Event {
	case "cpu", "wall", "alloc", "lock":
	default:
		return fmt.Errorf("unknown event type %q (valid: cpu, wall, alloc, lock)", c.Event)
	}
	if c.Watch != "" {
		fi, err := os.Stat(c.Watch)
		if err != nil {
			return fmt.Errorf("watch directory: %w", err)
		}
		if !fi.IsDir() {
			return fmt.Errorf("watch path %s is not a directory", c.Watch)
		}
	}
	return nil
}
