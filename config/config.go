package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type StorageConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=memory sqlite postgres"`
	Directory   string `yaml:"directory"`
	PostgresDSN string `yaml:"postgres_dsn" validate:"required_if=Backend postgres"`
}

type NetworkConfig struct {
	URL             string            `yaml:"url"`
	Headers         map[string]string `yaml:"headers"`
	RefreshInterval time.Duration     `yaml:"refresh_interval" validate:"gte=0"`

	// Downloads are kept in memory this long. Zero disables the
	// cache.
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

type WalkConfig struct {
	// Stops closer than this get a generated WALK segment. Zero
	// disables generation.
	RadiusMeters float64 `yaml:"radius_meters" validate:"gte=0"`
	SpeedMPS     float64 `yaml:"speed_mps" validate:"gt=0"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Config is the root configuration structure
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Network NetworkConfig `yaml:"network"`
	Walk    WalkConfig    `yaml:"walk"`
	Log     LogConfig     `yaml:"log"`
}

func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:   "sqlite",
			Directory: ".",
		},
		Network: NetworkConfig{
			RefreshInterval: 12 * time.Hour,
		},
		Walk: WalkConfig{
			SpeedMPS: 1.2,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file on top of the defaults and validates
// the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	v := validator.New()
	for _, section := range []interface{}{c.Storage, c.Network, c.Walk, c.Log} {
		if err := v.Struct(section); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
