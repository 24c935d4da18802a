// Package locate wraps a host positioning provider behind locate/error events.
package locate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"geolocate/internal/domain"
	"geolocate/internal/infra/tracer"
)

// Messages carried by errors the service raises itself.
const (
	msgUnsupported   = "capability unsupported"
	msgInvalidConfig = "invalid configuration"
	msgTimeout       = "timeout"
)

// Service mediates between caller configuration and a PositionProvider and
// republishes every outcome on the event bus.
type Service struct {
	provider domain.PositionProvider
	bus      domain.EventBus
	config   Config
	logger   *slog.Logger

	mu          sync.Mutex
	unsupported bool
	position    *domain.Position
	pending     *oneShot
	nextReqID   uint64
	watching    bool
	watch       domain.WatchHandle
	watchGen    uint64
}

// New creates the service. Subscribers must already be registered on bus:
// construction can publish immediately.
//
// When the provider is nil or reports no capability, a single error event
// with code -1 is published and the service ignores every later call.
// Otherwise, with LocateOnInit set, it starts a one-shot lookup or a watch
// according to LocateOnInitMode; an unknown mode publishes code -2.
func New(ctx context.Context, cfg Config, provider domain.PositionProvider, bus domain.EventBus, logger *slog.Logger) *Service {
	s := &Service{
		provider: provider,
		bus:      bus,
		config:   cfg,
		logger:   logger,
	}

	if provider == nil || !provider.Supported() {
		s.unsupported = true
		s.logger.Warn("positioning capability unsupported")
		s.publishError(ctx, domain.NewPositionError(domain.CodeUnsupported, msgUnsupported))
		return s
	}

	if !cfg.LocateOnInit {
		return s
	}
	switch cfg.LocateOnInitMode {
	case ModeLocate:
		s.LocateOnce(ctx)
	case ModeWatch:
		s.Watch(ctx)
	default:
		s.logger.Warn("unknown locate on init mode", "mode", string(cfg.LocateOnInitMode))
		s.publishError(ctx, domain.NewPositionError(domain.CodeInvalidConfig, msgInvalidConfig))
	}
	return s
}

// LocateOnce requests a single position. Exactly one of locate, provider
// error or timeout error is published for the request. A call made while a
// previous request is pending cancels the previous timeout.
func (s *Service) LocateOnce(ctx context.Context) {
	ctx, span := tracer.StartSpan(ctx, "locate.once")
	defer span.End()

	if s.isUnsupported() {
		s.logger.Debug("locate ignored: capability unsupported")
		return
	}

	opts := s.config.PositionOptions
	span.SetAttributes(
		tracer.StringAttr("provider", s.provider.Name()),
		tracer.BoolAttr("high_accuracy", opts.EnableHighAccuracy),
		tracer.IntAttr("timeout_ms", opts.TimeoutMillis),
	)

	// results arrive after this call returns; keep trace values, drop cancellation
	emitCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	if prev := s.pending; prev != nil {
		prev.superseded = true
		prev.stopTimer()
		s.logger.Debug("pending locate superseded", "request", prev.id)
	}
	s.nextReqID++
	req := &oneShot{id: s.nextReqID}
	s.pending = req
	req.timer = time.AfterFunc(opts.Timeout(), func() { s.expire(emitCtx, req) })
	s.mu.Unlock()

	err := s.provider.RequestOnce(ctx, opts, func(r domain.Result) {
		s.resolve(emitCtx, req, r)
	})
	if err != nil {
		tracer.RecordError(span, err)
		s.logger.Warn("locate request failed", "request", req.id, "error", err)
		s.resolve(emitCtx, req, domain.Result{
			Err: domain.NewPositionError(domain.CodePositionUnavailable, err.Error()),
		})
		return
	}
	tracer.SetOK(span)
}

// resolve handles the provider outcome of a one-shot request.
func (s *Service) resolve(ctx context.Context, req *oneShot, r domain.Result) {
	s.mu.Lock()
	if req.resolved {
		s.mu.Unlock()
		s.logger.Debug("dropping result of resolved request", "request", req.id)
		return
	}
	req.resolved = true
	req.stopTimer()
	if s.pending == req {
		s.pending = nil
	}
	pos, perr := s.applyLocked(r)
	s.mu.Unlock()

	if perr != nil {
		s.publishError(ctx, perr)
		return
	}
	s.publishLocate(ctx, pos)
}

// expire fires when a one-shot request's timeout elapses.
func (s *Service) expire(ctx context.Context, req *oneShot) {
	s.mu.Lock()
	if req.resolved || req.superseded {
		s.mu.Unlock()
		return
	}
	req.resolved = true
	if s.pending == req {
		s.pending = nil
	}
	s.mu.Unlock()

	s.logger.Debug("locate timed out", "request", req.id)
	s.publishError(ctx, domain.NewPositionError(domain.CodeTimeout, msgTimeout))
}

// Watch starts continuous position updates. Every provider result yields
// one event, in order, until StopWatch. An active watch is stopped first.
func (s *Service) Watch(ctx context.Context) {
	ctx, span := tracer.StartSpan(ctx, "locate.watch")
	defer span.End()

	if s.isUnsupported() {
		s.logger.Debug("watch ignored: capability unsupported")
		return
	}

	s.StopWatch()

	emitCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	s.watchGen++
	gen := s.watchGen
	s.mu.Unlock()

	handle, err := s.provider.StartWatch(ctx, s.config.PositionOptions, func(r domain.Result) {
		s.handleWatch(emitCtx, gen, r)
	})
	if err != nil {
		tracer.RecordError(span, err)
		s.logger.Warn("watch start failed", "error", err)
		s.publishError(emitCtx, domain.NewPositionError(domain.CodePositionUnavailable, err.Error()))
		return
	}

	s.mu.Lock()
	if s.watchGen != gen {
		// stopped or replaced while the provider was starting
		s.mu.Unlock()
		s.provider.CancelWatch(handle)
		return
	}
	s.watching = true
	s.watch = handle
	s.mu.Unlock()

	span.SetAttributes(tracer.StringAttr("watch.handle", string(handle)))
	tracer.SetOK(span)
	s.logger.Info("watch started", "handle", string(handle))
}

func (s *Service) handleWatch(ctx context.Context, gen uint64, r domain.Result) {
	s.mu.Lock()
	if gen != s.watchGen {
		s.mu.Unlock()
		return
	}
	pos, perr := s.applyLocked(r)
	s.mu.Unlock()

	if perr != nil {
		s.publishError(ctx, perr)
		return
	}
	s.publishLocate(ctx, pos)
}

// StopWatch cancels the active watch. It is a no-op when none is active.
func (s *Service) StopWatch() {
	s.mu.Lock()
	if !s.watching {
		s.mu.Unlock()
		return
	}
	handle := s.watch
	s.watching = false
	s.watch = ""
	s.watchGen++
	s.mu.Unlock()

	_, span := tracer.StartSpan(context.Background(), "locate.stop_watch")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("watch.handle", string(handle)))

	s.provider.CancelWatch(handle)
	s.logger.Info("watch stopped", "handle", string(handle))
}

// Watching reports whether a watch is active.
func (s *Service) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watching
}

// Position returns the last known position and whether one exists.
func (s *Service) Position() (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.position == nil {
		return domain.Position{}, false
	}
	return *s.position, true
}

// Close stops the active watch and cancels the pending timeout without
// publishing anything.
func (s *Service) Close() {
	s.StopWatch()

	s.mu.Lock()
	if s.pending != nil {
		s.pending.superseded = true
		s.pending.stopTimer()
		s.pending = nil
	}
	s.mu.Unlock()
}

func (s *Service) isUnsupported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsupported
}

// applyLocked merges a successful reading into the stored position and
// returns a copy of it, or the error to publish. s.mu must be held.
func (s *Service) applyLocked(r domain.Result) (domain.Position, *domain.PositionError) {
	if r.Err != nil {
		return domain.Position{}, r.Err
	}
	if r.Reading == nil {
		return domain.Position{}, domain.NewPositionError(domain.CodePositionUnavailable, "empty reading")
	}
	if s.position == nil {
		s.position = &domain.Position{}
	}
	s.position.Apply(*r.Reading)
	return *s.position, nil
}

func (s *Service) publishLocate(ctx context.Context, pos domain.Position) {
	s.logger.Debug("position updated",
		"latitude", pos.Latitude,
		"longitude", pos.Longitude,
		"accuracy", pos.AccuracyMeters,
		"direction", string(pos.CardinalDirection),
	)
	s.bus.Publish(ctx, domain.Event{
		Type:      domain.EventLocate,
		Timestamp: time.Now(),
		Position:  &pos,
	})
}

func (s *Service) publishError(ctx context.Context, perr *domain.PositionError) {
	s.logger.Debug("position error",
		"code", perr.Code,
		"error_code", string(domain.ErrorCodeOf(perr)),
		"message", perr.Message,
	)
	s.bus.Publish(ctx, domain.Event{
		Type:      domain.EventError,
		Timestamp: time.Now(),
		Err:       perr,
	})
}
