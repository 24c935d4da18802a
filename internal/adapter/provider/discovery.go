package provider

import (
	"context"

	"geolocate/internal/domain"
)

// Discoverer finds the WebSocket URL of a positioning bridge.
type Discoverer interface {
	Discover(ctx context.Context) (string, error)
}

// NoopDiscoverer is used when mDNS support is not compiled in.
type NoopDiscoverer struct{}

// NewNoopDiscoverer creates a NoopDiscoverer.
func NewNoopDiscoverer() *NoopDiscoverer { return &NoopDiscoverer{} }

// Discover always fails; build with -tags mdns to enable discovery.
func (NoopDiscoverer) Discover(_ context.Context) (string, error) {
	return "", domain.ErrDiscoveryDisabled
}
