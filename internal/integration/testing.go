// Package integration holds end-to-end tests that run the location service
// against a WebSocket bridge.
package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Config holds integration test configuration from environment
type Config struct {
	BridgeURL   string
	TestTimeout time.Duration
	SkipSlow    bool
}

// LoadConfig loads integration test configuration from environment
func LoadConfig() *Config {
	return &Config{
		BridgeURL:   os.Getenv("GEOLOCATE_BRIDGE_URL"),
		TestTimeout: 30 * time.Second,
		SkipSlow:    os.Getenv("SKIP_SLOW_TESTS") == "1",
	}
}

// SkipIfNoBridge skips the test if no live bridge is configured
func SkipIfNoBridge(t *testing.T, url string) {
	t.Helper()
	if url == "" {
		t.Skip("Skipping live bridge test: GEOLOCATE_BRIDGE_URL not set")
	}
}

// SkipIfShort skips integration tests in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// ScriptedBridge is a bridge that answers requests from a script. Each
// inbound get or watch frame is passed to Respond, and the returned raw
// frames are written back in order with {id} replaced by the request ID.
type ScriptedBridge struct {
	URL      string
	Hello    string
	Respond  func(frameType string) []string
	Received chan map[string]any
}

// StartScriptedBridge starts b on an httptest server and fills in b.URL.
func StartScriptedBridge(t *testing.T, b *ScriptedBridge) {
	t.Helper()
	if b.Received == nil {
		b.Received = make(chan map[string]any, 32)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		ctx := context.Background()
		if err := c.Write(ctx, websocket.MessageText, []byte(b.Hello)); err != nil {
			return
		}
		for {
			var frame map[string]any
			if err := wsjson.Read(ctx, c, &frame); err != nil {
				return
			}
			select {
			case b.Received <- frame:
			default:
			}
			typ, _ := frame["type"].(string)
			id, _ := frame["id"].(string)
			if b.Respond == nil {
				continue
			}
			for _, raw := range b.Respond(typ) {
				out := strings.ReplaceAll(raw, "{id}", id)
				if err := c.Write(ctx, websocket.MessageText, []byte(out)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	b.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
}
