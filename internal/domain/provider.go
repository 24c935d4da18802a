package domain

import (
	"context"
	"time"
)

// PositionOptions are passed through to the provider on every request.
type PositionOptions struct {
	EnableHighAccuracy bool
	TimeoutMillis      int
	MaxCacheAgeMillis  int
}

// Timeout returns TimeoutMillis as a duration.
func (o PositionOptions) Timeout() time.Duration {
	return time.Duration(o.TimeoutMillis) * time.Millisecond
}

// WatchHandle identifies a continuous subscription on the provider.
type WatchHandle string

// Result is the tagged outcome of a provider callback: either Reading or Err.
type Result struct {
	Reading *Reading
	Err     *PositionError
}

// OK reports whether the result carries a reading.
func (r Result) OK() bool { return r.Err == nil && r.Reading != nil }

// ResultHandler receives provider results. It may be called from any goroutine.
type ResultHandler func(Result)

// PositionProvider is the host positioning capability.
type PositionProvider interface {
	// Name returns the provider identifier (e.g. "websocket").
	Name() string
	// Supported reports whether the host offers a positioning capability.
	Supported() bool
	// RequestOnce asks for a single position. The handler is called at most
	// once. A non-nil error means the request could not be issued.
	RequestOnce(ctx context.Context, opts PositionOptions, handler ResultHandler) error
	// StartWatch begins continuous updates; the handler is called for every
	// update until CancelWatch.
	StartWatch(ctx context.Context, opts PositionOptions, handler ResultHandler) (WatchHandle, error)
	// CancelWatch stops the subscription identified by handle.
	CancelWatch(handle WatchHandle)
}
