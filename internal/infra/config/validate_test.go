package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDefaults(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("Validate(Defaults()): %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative timeout", func(c *Config) { c.Locate.PositionOptions.TimeoutMillis = -1 }, "timeout_ms"},
		{"negative cache age", func(c *Config) { c.Locate.PositionOptions.MaxCacheAgeMillis = -5 }, "max_cache_age_ms"},
		{"unknown provider", func(c *Config) { c.Provider.Type = "gpsd" }, "provider.type"},
		{"unknown discovery", func(c *Config) { c.Provider.Discovery = "upnp" }, "provider.discovery"},
		{"http url", func(c *Config) { c.Provider.URL = "http://localhost:8765" }, "provider.url"},
		{"missing url", func(c *Config) { c.Provider.URL = "" }, "provider.url is required"},
		{"zero dial timeout", func(c *Config) { c.Provider.DialTimeout = 0 }, "dial_timeout"},
		{"zero handshake timeout", func(c *Config) { c.Provider.HandshakeTimeout = 0 }, "handshake_timeout"},
		{"bad log level", func(c *Config) { c.Logger.Level = "verbose" }, "logger.level"},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"bad exporter", func(c *Config) {
			c.Tracer.Enabled = true
			c.Tracer.Exporter = "zipkin"
		}, "tracer.exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAccumulatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Locate.PositionOptions.TimeoutMillis = -1
	cfg.Logger.Format = "xml"

	var ve *ValidationError
	if !errors.As(Validate(cfg), &ve) {
		t.Fatal("expected *ValidationError")
	}
	if len(ve.Errors) != 2 {
		t.Errorf("expected 2 errors, got %v", ve.Errors)
	}
}

func TestValidateDiscoveryWithoutURL(t *testing.T) {
	cfg := Defaults()
	cfg.Provider.URL = ""
	cfg.Provider.Discovery = "mdns"
	if err := Validate(cfg); err != nil {
		t.Errorf("mdns discovery without url should validate: %v", err)
	}
}

func TestValidateNoneProviderSkipsWebSocketChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Provider.Type = "none"
	cfg.Provider.URL = ""
	cfg.Provider.DialTimeout = 0
	if err := Validate(cfg); err != nil {
		t.Errorf("none provider should validate: %v", err)
	}
}
