package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
compression:
  default_preset: high
  presets:
    high:
      dpi: 200
      quality: 90
  ladder:
    - dpi: 120
      quality: 60
    - dpi: 60
      quality: 30
batch:
  workers: 8
  extensions: [PDF, ".Pdf"]
server:
  port: 9090
logging:
  level: debug
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Compression.DefaultPreset != "high" {
		t.Errorf("default preset = %q", cfg.Compression.DefaultPreset)
	}
	if got := cfg.Compression.Presets["high"]; got != (PresetConfig{DPI: 200, Quality: 90}) {
		t.Errorf("high preset = %+v", got)
	}
	if got := cfg.Compression.Presets["low"]; got != (PresetConfig{DPI: 72, Quality: 50}) {
		t.Errorf("low preset lost its default: %+v", got)
	}
	wantLadder := []PresetConfig{{DPI: 120, Quality: 60}, {DPI: 60, Quality: 30}}
	if diff := cmp.Diff(wantLadder, cfg.Compression.Ladder); diff != "" {
		t.Errorf("ladder (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{".pdf", ".pdf"}, cfg.Batch.Extensions); diff != "" {
		t.Errorf("extensions (-want +got):\n%s", diff)
	}
	if cfg.Batch.Workers != 8 || cfg.Server.Port != 9090 || cfg.Logging.Level != "debug" {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Compression.SlackFactor != 1.5 || cfg.Compression.PageWidthInches != 8.27 {
		t.Error("unset keys lost their defaults")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PDF_EDITOR_SERVER_PORT", "7070")
	t.Setenv("PDF_EDITOR_LOGGING_LEVEL", "warn")
	path := writeConfig(t, "batch:\n  workers: 2\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7070 || cfg.Logging.Level != "warn" {
		t.Errorf("env not applied: port %d, level %s", cfg.Server.Port, cfg.Logging.Level)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]func(*Config){
		"zero dpi":       func(c *Config) { c.Compression.Presets["high"] = PresetConfig{DPI: 0, Quality: 80} },
		"quality 101":    func(c *Config) { c.Compression.FallbackPreset.Quality = 101 },
		"empty ladder":   func(c *Config) { c.Compression.Ladder = nil },
		"negative slack": func(c *Config) { c.Compression.SlackFactor = -1 },
		"bad port":       func(c *Config) { c.Server.Port = 70000 },
		"bad log level":  func(c *Config) { c.Logging.Level = "verbose" },
		"upper preset":   func(c *Config) { c.Compression.DefaultPreset = "HIGH" },
		"unknown preset": func(c *Config) { c.Compression.DefaultPreset = "ultra" },
	}
	for name, mutate := range tests {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("explicit missing config file accepted")
	}
}
