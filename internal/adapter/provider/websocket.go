package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"geolocate/internal/domain"
	"geolocate/internal/infra/tracer"
)

const (
	defaultDialTimeout      = 5 * time.Second
	defaultHandshakeTimeout = 5 * time.Second
	writeTimeout            = 5 * time.Second
	maxFrameBytes           = 64 * 1024

	msgBridgeDisconnected = "bridge disconnected"
)

// WebSocketConfig holds connection settings for a positioning bridge.
type WebSocketConfig struct {
	URL              string
	DialTimeout      time.Duration
	HandshakeTimeout time.Duration
}

// WebSocketProvider implements domain.PositionProvider against a bridge
// process that relays a host geolocation capability over WebSocket.
type WebSocketProvider struct {
	conn      *websocket.Conn
	validator *frameValidator
	logger    *slog.Logger
	supported bool
	agent     string
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu      sync.Mutex
	closed  bool
	pending map[string]domain.ResultHandler // one-shot requests, removed on first result
	watches map[string]domain.ResultHandler
}

// DialWebSocket connects to the bridge and waits for its hello frame, which
// states whether the host has a positioning capability.
func DialWebSocket(ctx context.Context, cfg WebSocketConfig, logger *slog.Logger) (*WebSocketProvider, error) {
	ctx, span := tracer.StartSpan(ctx, "provider.websocket.dial")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("bridge.url", cfg.URL))

	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}

	validator, err := newFrameValidator()
	if err != nil {
		return nil, err
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancelDial()
	conn, _, err := websocket.Dial(dialCtx, cfg.URL, nil)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("dial bridge %s: %w", cfg.URL, err)
	}
	conn.SetReadLimit(maxFrameBytes)

	hello, err := readHello(ctx, conn, validator, cfg.HandshakeTimeout)
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "handshake failed")
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError("WebSocketProvider.Dial", domain.ErrBridgeHandshake, err.Error())
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	p := &WebSocketProvider{
		conn:      conn,
		validator: validator,
		logger:    logger,
		supported: hello.Geolocation != nil && *hello.Geolocation,
		agent:     hello.Agent,
		cancel:    cancel,
		pending:   make(map[string]domain.ResultHandler),
		watches:   make(map[string]domain.ResultHandler),
	}
	go p.readLoop(loopCtx)

	span.SetAttributes(tracer.BoolAttr("bridge.geolocation", p.supported))
	tracer.SetOK(span)
	logger.Info("bridge connected", "url", cfg.URL, "agent", p.agent, "geolocation", p.supported)
	return p, nil
}

func readHello(ctx context.Context, conn *websocket.Conn, v *frameValidator, timeout time.Duration) (Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		return Frame{}, fmt.Errorf("read hello: %w", err)
	}
	f, err := v.decode(data)
	if err != nil {
		return Frame{}, err
	}
	if f.Type != FrameTypeHello {
		return Frame{}, fmt.Errorf("expected hello frame, got %q", f.Type)
	}
	return f, nil
}

func (p *WebSocketProvider) Name() string { return "websocket" }

// Supported reports what the bridge announced in its hello frame.
func (p *WebSocketProvider) Supported() bool { return p.supported }

// Agent returns the bridge's self-description from the hello frame.
func (p *WebSocketProvider) Agent() string { return p.agent }

// RequestOnce sends a get frame. The handler receives the first position or
// error frame carrying the request ID.
func (p *WebSocketProvider) RequestOnce(ctx context.Context, opts domain.PositionOptions, handler domain.ResultHandler) error {
	id := newID()
	if err := p.register(p.pending, id, handler); err != nil {
		return err
	}
	if err := p.send(ctx, Frame{Type: FrameTypeGet, ID: id, Options: wireOptions(opts)}); err != nil {
		p.forget(p.pending, id)
		return err
	}
	return nil
}

// StartWatch sends a watch frame. The returned handle is the watch ID.
func (p *WebSocketProvider) StartWatch(ctx context.Context, opts domain.PositionOptions, handler domain.ResultHandler) (domain.WatchHandle, error) {
	id := newID()
	if err := p.register(p.watches, id, handler); err != nil {
		return "", err
	}
	if err := p.send(ctx, Frame{Type: FrameTypeWatch, ID: id, Options: wireOptions(opts)}); err != nil {
		p.forget(p.watches, id)
		return "", err
	}
	return domain.WatchHandle(id), nil
}

// CancelWatch drops the watch locally and tells the bridge to clear it.
// Frames for the watch that are already in flight are ignored.
func (p *WebSocketProvider) CancelWatch(handle domain.WatchHandle) {
	id := string(handle)
	if !p.forget(p.watches, id) {
		return
	}
	if err := p.send(context.Background(), Frame{Type: FrameTypeClearWatch, ID: id}); err != nil {
		p.logger.Warn("clear watch failed", "handle", id, "error", err)
	}
}

// Close closes the connection. Outstanding handlers are dropped silently.
func (p *WebSocketProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	clear(p.pending)
	clear(p.watches)
	p.mu.Unlock()

	var err error
	p.closeOnce.Do(func() {
		err = p.conn.Close(websocket.StatusNormalClosure, "client closing")
		p.cancel()
	})
	return err
}

func (p *WebSocketProvider) register(m map[string]domain.ResultHandler, id string, h domain.ResultHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrBridgeClosed
	}
	m[id] = h
	return nil
}

// forget removes id from m and reports whether it was present.
func (p *WebSocketProvider) forget(m map[string]domain.ResultHandler, id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := m[id]
	delete(m, id)
	return ok
}

func (p *WebSocketProvider) send(ctx context.Context, f Frame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, p.conn, f); err != nil {
		return fmt.Errorf("send %s frame: %w", f.Type, err)
	}
	return nil
}

func (p *WebSocketProvider) readLoop(ctx context.Context) {
	for {
		_, data, err := p.conn.Read(ctx)
		if err != nil {
			p.fail(err)
			return
		}
		p.handleFrame(data)
	}
}

func (p *WebSocketProvider) handleFrame(data []byte) {
	f, err := p.validator.decode(data)
	if err != nil {
		p.logger.Warn("dropping bridge frame", "error", err)
		return
	}

	switch f.Type {
	case FrameTypePosition:
		if h := p.lookup(f.ID); h != nil {
			h(domain.Result{Reading: f.Coords})
		} else {
			p.logger.Debug("position for unknown id", "id", f.ID)
		}
	case FrameTypeError:
		if f.ID == "" {
			p.logger.Warn("bridge error", "code", f.Error.Code, "message", f.Error.Message)
			return
		}
		if h := p.lookup(f.ID); h != nil {
			h(domain.Result{Err: f.Error})
		} else {
			p.logger.Debug("error for unknown id", "id", f.ID)
		}
	case FrameTypeHello:
		p.logger.Debug("ignoring repeated hello")
	}
}

// lookup returns the handler for id. One-shot handlers are removed so they
// fire at most once.
func (p *WebSocketProvider) lookup(id string) domain.ResultHandler {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.pending[id]; ok {
		delete(p.pending, id)
		return h
	}
	return p.watches[id]
}

// fail reports a lost connection once to every outstanding request and watch.
func (p *WebSocketProvider) fail(cause error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	handlers := make([]domain.ResultHandler, 0, len(p.pending)+len(p.watches))
	for _, h := range p.pending {
		handlers = append(handlers, h)
	}
	for _, h := range p.watches {
		handlers = append(handlers, h)
	}
	clear(p.pending)
	clear(p.watches)
	p.mu.Unlock()

	p.logger.Warn("bridge connection lost", "error", cause, "outstanding", len(handlers))
	perr := domain.NewPositionError(domain.CodePositionUnavailable, msgBridgeDisconnected)
	for _, h := range handlers {
		h(domain.Result{Err: perr})
	}
}

func newID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
