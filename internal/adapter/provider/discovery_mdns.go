//go:build mdns

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"

	"geolocate/internal/domain"
)

const (
	mdnsServiceType = "_geolocate._tcp"
	mdnsDomain      = "local."
	mdnsScanTimeout = 3 * time.Second
	defaultWSPath   = "/geolocation"
)

// NewDiscoverer returns the discoverer compiled into this binary.
func NewDiscoverer(logger *slog.Logger) Discoverer { return NewMDNSDiscoverer(logger) }

// MDNSDiscoverer browses the local network for a positioning bridge.
type MDNSDiscoverer struct {
	logger  *slog.Logger
	timeout time.Duration
}

// NewMDNSDiscoverer creates a new MDNSDiscoverer.
func NewMDNSDiscoverer(logger *slog.Logger) *MDNSDiscoverer {
	return &MDNSDiscoverer{logger: logger, timeout: mdnsScanTimeout}
}

// Discover returns the URL of the first bridge that answers within the scan
// timeout.
func (d *MDNSDiscoverer) Discover(ctx context.Context) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("mdns resolver: %w", err)
	}

	scanCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan string, 1)
	go func() {
		for entry := range entries {
			url := entryToURL(entry)
			if url == "" {
				continue
			}
			d.logger.Debug("mdns discovered bridge", "instance", entry.Instance, "url", url)
			select {
			case found <- url:
				cancel()
			default:
			}
		}
	}()

	if err := resolver.Browse(scanCtx, mdnsServiceType, mdnsDomain, entries); err != nil {
		return "", fmt.Errorf("mdns browse: %w", err)
	}

	select {
	case url := <-found:
		return url, nil
	case <-scanCtx.Done():
		select {
		case url := <-found:
			return url, nil
		default:
		}
		return "", domain.WrapOp("MDNSDiscoverer.Discover", domain.ErrDiscoveryNoBridge)
	}
}

func entryToURL(entry *zeroconf.ServiceEntry) string {
	var host string
	if len(entry.AddrIPv4) > 0 {
		host = fmt.Sprintf("%s:%d", entry.AddrIPv4[0], entry.Port)
	} else if len(entry.AddrIPv6) > 0 {
		host = fmt.Sprintf("[%s]:%d", entry.AddrIPv6[0], entry.Port)
	} else {
		return ""
	}

	path := parseTXTRecords(entry.Text)["path"]
	if path == "" {
		path = defaultWSPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "ws://" + host + path
}

func parseTXTRecords(txt []string) map[string]string {
	m := make(map[string]string, len(txt))
	for _, t := range txt {
		k, v, ok := strings.Cut(t, "=")
		if ok {
			m[k] = v
		}
	}
	return m
}
