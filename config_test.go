package main

import (
	"strings"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "profview.yaml", `
address: 0.0.0.0
port: 8080
event: alloc
verbose: true
captures:
  - one.collapsed
  - two.jfr
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Address != "0.0.0.0" || cfg.Port != 8080 || cfg.Event != "alloc" || !cfg.Verbose {
		t.Errorf("config = %+v", cfg)
	}
	if len(cfg.Captures) != 2 || cfg.Captures[0] != "one.collapsed" {
		t.Errorf("captures = %v", cfg.Captures)
	}
}

// Fields absent from the file keep their defaults.
func TestLoadConfigPartial(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "profview.yaml", "port: 9000\n")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Port)
	}
	if cfg.Address != "127.0.0.1" || cfg.Event != "cpu" {
		t.Errorf("defaults not kept: %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "port: [\n")
	if _, err := loadConfig(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}
	if _, err := loadConfig(dir + "/missing.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "plain.txt", "x")

	tests := []struct {
		name    string
		mutate  func(*config)
		wantErr string
	}{
		{"defaults ok", func(c *config) {}, ""},
		{"zero port", func(c *config) { c.Port = 0 }, "invalid port"},
		{"port too high", func(c *config) { c.Port = 70000 }, "invalid port"},
		{"bad event", func(c *config) { c.Event = "io" }, "unknown event type"},
		{"watch ok", func(c *config) { c.Watch = dir }, ""},
		{"watch missing", func(c *config) { c.Watch = dir + "/gone" }, "watch directory"},
		{"watch not a dir", func(c *config) { c.Watch = file }, "not a directory"},
	}
	for _, tt := range tests {
		cfg := defaultConfig()
		tt.mutate(&cfg)
		err := cfg.validate()
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: err = %v, want containing %q", tt.name, err, tt.wantErr)
		}
	}
}
