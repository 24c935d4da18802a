package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
//
// locate.locate_on_init_mode is deliberately not checked here: the location
// service reports an unknown mode as an error event at construction.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLocate(cfg, ve)
	validateProvider(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateLocate(cfg *Config, ve *ValidationError) {
	opts := cfg.Locate.PositionOptions
	if opts.TimeoutMillis < 0 {
		ve.Add("locate.position_options.timeout_ms must be >= 0")
	}
	if opts.MaxCacheAgeMillis < 0 {
		ve.Add("locate.position_options.max_cache_age_ms must be >= 0")
	}
}

var validProviderTypes = map[string]bool{
	"websocket": true,
	"none":      true,
}

func validateProvider(cfg *Config, ve *ValidationError) {
	p := cfg.Provider
	if !validProviderTypes[p.Type] {
		ve.Add("provider.type %q must be one of: websocket, none", p.Type)
		return
	}
	switch p.Discovery {
	case "", "mdns":
	default:
		ve.Add("provider.discovery %q must be empty or mdns", p.Discovery)
	}
	if p.Type != "websocket" {
		return
	}
	if p.URL == "" && p.Discovery == "" {
		ve.Add("provider.url is required when provider.discovery is not set")
	}
	if p.URL != "" {
		u, err := url.Parse(p.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			ve.Add("provider.url %q must be a ws:// or wss:// URL", p.URL)
		}
	}
	if p.DialTimeout <= 0 {
		ve.Add("provider.dial_timeout must be > 0")
	}
	if p.HandshakeTimeout <= 0 {
		ve.Add("provider.handshake_timeout must be > 0")
	}
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q must be one of: debug, info, warn, error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json":
	default:
		ve.Add("logger.format %q must be text or json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q must be one of: noop, stdout", cfg.Tracer.Exporter)
	}
}
