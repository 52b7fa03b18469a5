package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the main configuration structure
type Config struct {
	Compression CompressionConfig `mapstructure:"compression"`
	Batch       BatchConfig       `mapstructure:"batch"`
	Server      ServerConfig      `mapstructure:"server"`
	Session     SessionConfig     `mapstructure:"session"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// PresetConfig is a (resolution, quality) pair
type PresetConfig struct {
	DPI     int `mapstructure:"dpi"`
	Quality int `mapstructure:"quality"`
}

// CompressionConfig contains image downsampling settings
type CompressionConfig struct {
	DefaultPreset       string                  `mapstructure:"default_preset"`
	SmallImageThreshold int                     `mapstructure:"small_image_threshold"` // pixels
	PageWidthInches     float64                 `mapstructure:"page_width_inches"`
	SlackFactor         float64                 `mapstructure:"slack_factor"`
	Presets             map[string]PresetConfig `mapstructure:"presets"`
	FallbackPreset      PresetConfig            `mapstructure:"fallback_preset"`
	Ladder              []PresetConfig          `mapstructure:"ladder"`
}

// BatchConfig contains settings for compressing many files
type BatchConfig struct {
	Workers    int      `mapstructure:"workers"`
	Extensions []string `mapstructure:"extensions"`
	Threshold  float64  `mapstructure:"threshold"`
}

// ServerConfig contains web server settings
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SessionConfig contains settings for editing sessions
type SessionConfig struct {
	TempDir string `mapstructure:"temp_dir"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Compression: CompressionConfig{
			DefaultPreset:       "medium",
			SmallImageThreshold: 100,
			PageWidthInches:     8.27, // A4 portrait
			SlackFactor:         1.5,
			Presets: map[string]PresetConfig{
				"high":   {DPI: 150, Quality: 85},
				"medium": {DPI: 96, Quality: 70},
				"low":    {DPI: 72, Quality: 50},
			},
			FallbackPreset: PresetConfig{DPI: 96, Quality: 75},
			Ladder: []PresetConfig{
				{DPI: 150, Quality: 75},
				{DPI: 96, Quality: 60},
				{DPI: 72, Quality: 40},
				{DPI: 50, Quality: 30},
			},
		},
		Batch: BatchConfig{
			Workers:    4,
			Extensions: []string{".pdf"},
			Threshold:  1.0,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "pdf-editor.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	// A missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pdf-editor")
		v.AddConfigPath("/etc/pdf-editor")
	}

	v.SetEnvPrefix("PDF_EDITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Lists from the file replace the defaults instead of merging into them
	if v.IsSet("compression.ladder") {
		config.Compression.Ladder = nil
	}
	if v.IsSet("batch.extensions") {
		config.Batch.Extensions = nil
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindEnv registers scalar keys so AutomaticEnv overrides reach Unmarshal
// even when no config file mentions them.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"compression.default_preset",
		"compression.small_image_threshold",
		"compression.page_width_inches",
		"compression.slack_factor",
		"batch.workers",
		"batch.threshold",
		"server.port",
		"session.temp_dir",
		"logging.level",
		"logging.file_path",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	comp := &c.Compression

	if comp.SmallImageThreshold < 0 {
		return fmt.Errorf("small_image_threshold must not be negative: %d", comp.SmallImageThreshold)
	}
	if comp.PageWidthInches <= 0 {
		return fmt.Errorf("page_width_inches must be positive: %g", comp.PageWidthInches)
	}
	if comp.SlackFactor <= 0 {
		return fmt.Errorf("slack_factor must be positive: %g", comp.SlackFactor)
	}

	for name, p := range comp.Presets {
		if err := p.validate(); err != nil {
			return fmt.Errorf("preset %q: %w", name, err)
		}
	}
	if err := comp.FallbackPreset.validate(); err != nil {
		return fmt.Errorf("fallback_preset: %w", err)
	}
	if len(comp.Ladder) == 0 {
		return fmt.Errorf("ladder must contain at least one preset")
	}
	for i, p := range comp.Ladder {
		if err := p.validate(); err != nil {
			return fmt.Errorf("ladder[%d]: %w", i, err)
		}
	}

	if comp.DefaultPreset == "" {
		comp.DefaultPreset = "medium"
	}
	if _, ok := comp.Presets[comp.DefaultPreset]; !ok {
		return fmt.Errorf("default_preset %q is not a defined preset", comp.DefaultPreset)
	}

	if c.Batch.Workers <= 0 {
		c.Batch.Workers = 4
	}
	if c.Batch.Threshold <= 0 {
		c.Batch.Threshold = 1.0
	}
	c.Batch.Extensions = normalizeExtensions(c.Batch.Extensions)

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

func (p PresetConfig) validate() error {
	if p.DPI <= 0 {
		return fmt.Errorf("dpi must be positive: %d", p.DPI)
	}
	if p.Quality < 1 || p.Quality > 100 {
		return fmt.Errorf("quality must be within 1-100: %d", p.Quality)
	}
	return nil
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return normalized
}
