package main

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"geolocate/internal/domain"
)

// eventPrinter writes each event as one JSON line.
type eventPrinter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newEventPrinter(w io.Writer) *eventPrinter {
	return &eventPrinter{enc: json.NewEncoder(w)}
}

func (p *eventPrinter) handle(_ context.Context, e domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.enc.Encode(e)
}
