package domain

import (
	"context"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	// EventLocate carries an updated Position.
	EventLocate EventType = "locate"
	// EventError carries a PositionError.
	EventError EventType = "error"
)

// Event is the envelope published on the event bus. Exactly one of
// Position and Err is set, matching Type.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Position  *Position      `json:"position,omitempty"`
	Err       *PositionError `json:"error,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for location events.
type EventBus interface {
	// Publish delivers an event to all matching subscribers, synchronously
	// and in subscription order.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close waits for in-flight publishes and prevents new ones.
	Close()
}
