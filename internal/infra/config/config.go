package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Locate   LocateConfig   `yaml:"locate"`
	Provider ProviderConfig `yaml:"provider"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
}

// LocateConfig holds the location service settings.
type LocateConfig struct {
	LocateOnInit     bool                  `yaml:"locate_on_init"`
	LocateOnInitMode string                `yaml:"locate_on_init_mode"` // "locate" or "watch"
	PositionOptions  PositionOptionsConfig `yaml:"position_options"`
}

// PositionOptionsConfig is passed through to the provider on every request.
type PositionOptionsConfig struct {
	EnableHighAccuracy bool `yaml:"enable_high_accuracy"`
	TimeoutMillis      int  `yaml:"timeout_ms"`
	MaxCacheAgeMillis  int  `yaml:"max_cache_age_ms"`
}

// ProviderConfig selects and configures the host positioning provider.
type ProviderConfig struct {
	Type             string        `yaml:"type"`      // "websocket" or "none"
	URL              string        `yaml:"url"`       // ws:// or wss:// bridge endpoint
	Discovery        string        `yaml:"discovery"` // "" or "mdns"
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with every field set.
func Defaults() *Config {
	return &Config{
		Locate: LocateConfig{
			LocateOnInit:     true,
			LocateOnInitMode: "locate",
			PositionOptions: PositionOptionsConfig{
				EnableHighAccuracy: false,
				TimeoutMillis:      10000,
				MaxCacheAgeMillis:  0,
			},
		},
		Provider: ProviderConfig{
			Type:             "websocket",
			URL:              "ws://localhost:8765/geolocation",
			DialTimeout:      5 * time.Second,
			HandshakeTimeout: 5 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file over the defaults, applies env var overrides
// and validates the result. A missing file yields the defaults. Unknown keys
// are rejected.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := decodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeStrict overlays data onto cfg and fails on keys the Config does not
// declare. An empty document leaves cfg untouched.
func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnvOverrides maps GEOLOCATE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GEOLOCATE_LOCATE_ON_INIT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Locate.LocateOnInit = b
		}
	}
	if v := os.Getenv("GEOLOCATE_LOCATE_MODE"); v != "" {
		cfg.Locate.LocateOnInitMode = v
	}
	if v := os.Getenv("GEOLOCATE_HIGH_ACCURACY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Locate.PositionOptions.EnableHighAccuracy = b
		}
	}
	if v := os.Getenv("GEOLOCATE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Locate.PositionOptions.TimeoutMillis = n
		}
	}
	if v := os.Getenv("GEOLOCATE_MAX_CACHE_AGE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Locate.PositionOptions.MaxCacheAgeMillis = n
		}
	}
	if v := os.Getenv("GEOLOCATE_PROVIDER_TYPE"); v != "" {
		cfg.Provider.Type = v
	}
	if v := os.Getenv("GEOLOCATE_PROVIDER_URL"); v != "" {
		cfg.Provider.URL = v
	}
	if v := os.Getenv("GEOLOCATE_PROVIDER_DISCOVERY"); v != "" {
		cfg.Provider.Discovery = v
	}
	if v := os.Getenv("GEOLOCATE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("GEOLOCATE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("GEOLOCATE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("GEOLOCATE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// validatePermissions checks the config file is not writable by others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
