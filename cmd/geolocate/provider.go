package main

import (
	"context"
	"log/slog"

	"geolocate/internal/adapter/provider"
	"geolocate/internal/domain"
	"geolocate/internal/infra/config"
)

// buildProvider returns the configured positioning provider and a function
// that releases it. A bridge that cannot be found or reached yields the
// Unavailable provider, so the service reports the missing capability the
// same way a host without one would.
func buildProvider(ctx context.Context, cfg config.ProviderConfig, log *slog.Logger) (domain.PositionProvider, func()) {
	noop := func() {}
	if cfg.Type == "none" {
		return provider.NewUnavailable(), noop
	}

	url, err := resolveBridgeURL(ctx, cfg, provider.NewDiscoverer(log))
	if err != nil {
		log.Warn("no positioning bridge", "error", err)
		return provider.NewUnavailable(), noop
	}

	p, err := provider.DialWebSocket(ctx, provider.WebSocketConfig{
		URL:              url,
		DialTimeout:      cfg.DialTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}, log)
	if err != nil {
		log.Warn("positioning bridge unreachable", "url", url, "error", err)
		return provider.NewUnavailable(), noop
	}
	return p, func() {
		if err := p.Close(); err != nil {
			log.Debug("bridge close", "error", err)
		}
	}
}

// resolveBridgeURL returns the configured URL, or asks d when discovery is
// enabled and no URL is set.
func resolveBridgeURL(ctx context.Context, cfg config.ProviderConfig, d provider.Discoverer) (string, error) {
	if cfg.URL != "" {
		return cfg.URL, nil
	}
	if cfg.Discovery == "" {
		return "", domain.WrapOp("resolveBridgeURL", domain.ErrDiscoveryDisabled)
	}
	url, err := d.Discover(ctx)
	if err != nil {
		return "", domain.WrapOp("resolveBridgeURL", err)
	}
	return url, nil
}
