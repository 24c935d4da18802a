package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"geolocate/internal/adapter/provider"
	"geolocate/internal/domain"
	"geolocate/internal/infra/config"
	"geolocate/internal/infra/logger"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// runDoctor executes all health checks and reports results.
func runDoctor(flags cliFlags) error {
	cfg, cfgErr := loadConfig(flags)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(flags.ConfigPath, cfgErr)},
		{Name: "Locate mode", Fn: checkLocateMode},
		{Name: "Bridge", Fn: checkBridge(context.Background(), provider.NewDiscoverer(logger.Discard()))},
	}

	fmt.Println("geolocate doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile reports whether the config file exists and loads.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check " + cfgPath + " syntax and values",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkLocateMode flags a mode the service would reject with code -2.
func checkLocateMode(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	if !cfg.Locate.LocateOnInit {
		return CheckResult{Status: StatusPass, Message: "locate on init disabled"}
	}
	switch cfg.Locate.LocateOnInitMode {
	case "locate", "watch":
		return CheckResult{Status: StatusPass, Message: "on init: " + cfg.Locate.LocateOnInitMode}
	default:
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("unknown locate_on_init_mode %q", cfg.Locate.LocateOnInitMode),
			Fix:     "Set locate.locate_on_init_mode to locate or watch",
		}
	}
}

// checkBridge connects to the bridge and reports its capability.
func checkBridge(ctx context.Context, d provider.Discoverer) func(*config.Config) CheckResult {
	return func(cfg *config.Config) CheckResult {
		if cfg == nil {
			return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
		}
		if cfg.Provider.Type == "none" {
			return CheckResult{Status: StatusWarn, Message: "provider disabled; every request reports capability unsupported"}
		}

		url, err := resolveBridgeURL(ctx, cfg.Provider, d)
		if err != nil {
			fix := "Set provider.url"
			if errors.Is(err, domain.ErrDiscoveryDisabled) && cfg.Provider.Discovery == "mdns" {
				fix = "Rebuild with -tags mdns or set provider.url"
			}
			return CheckResult{Status: StatusFail, Message: fmt.Sprintf("no bridge: %v", err), Fix: fix}
		}

		dialCtx, cancel := context.WithTimeout(ctx, cfg.Provider.DialTimeout+cfg.Provider.HandshakeTimeout+time.Second)
		defer cancel()
		p, err := provider.DialWebSocket(dialCtx, provider.WebSocketConfig{
			URL:              url,
			DialTimeout:      cfg.Provider.DialTimeout,
			HandshakeTimeout: cfg.Provider.HandshakeTimeout,
		}, logger.Discard())
		if err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("cannot reach %s: %v", url, err),
				Fix:     "Start the bridge or correct provider.url",
			}
		}
		defer p.Close()

		if !p.Supported() {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("%s (%s) has no geolocation capability", url, agentName(p.Agent())),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%s (%s) supports geolocation", url, agentName(p.Agent())),
		}
	}
}

func agentName(agent string) string {
	if agent == "" {
		return "unknown agent"
	}
	return agent
}
