package locate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geolocate/internal/domain"
	"geolocate/internal/infra/logger"
	"geolocate/internal/usecase/eventbus"
)

// --- fake provider ---

type fakeProvider struct {
	mu         sync.Mutex
	supported  bool
	requestErr error
	startErr   error

	once      []domain.ResultHandler
	watches   map[domain.WatchHandle]domain.ResultHandler
	cancelled []domain.WatchHandle
	nextWatch int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{supported: true, watches: make(map[domain.WatchHandle]domain.ResultHandler)}
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Supported() bool { return f.supported }

func (f *fakeProvider) RequestOnce(_ context.Context, _ domain.PositionOptions, h domain.ResultHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requestErr != nil {
		return f.requestErr
	}
	f.once = append(f.once, h)
	return nil
}

func (f *fakeProvider) StartWatch(_ context.Context, _ domain.PositionOptions, h domain.ResultHandler) (domain.WatchHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.nextWatch++
	handle := domain.WatchHandle(fmt.Sprintf("watch-%d", f.nextWatch))
	f.watches[handle] = h
	return handle, nil
}

func (f *fakeProvider) CancelWatch(handle domain.WatchHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, handle)
}

// respondOnce delivers r to the i-th one-shot request.
func (f *fakeProvider) respondOnce(i int, r domain.Result) {
	f.mu.Lock()
	h := f.once[i]
	f.mu.Unlock()
	h(r)
}

// deliver sends r to the watch identified by handle, even if cancelled.
func (f *fakeProvider) deliver(handle domain.WatchHandle, r domain.Result) {
	f.mu.Lock()
	h := f.watches[handle]
	f.mu.Unlock()
	h(r)
}

func (f *fakeProvider) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.once) + len(f.watches)
}

// --- event recorder ---

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func newRecorder(bus domain.EventBus) *recorder {
	r := &recorder{}
	bus.SubscribeAll(func(_ context.Context, e domain.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func (r *recorder) ofType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range r.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// --- helpers ---

func reading(lat, lon, acc float64) domain.Result {
	return domain.Result{Reading: &domain.Reading{Latitude: lat, Longitude: lon, Accuracy: acc}}
}

func idleConfig() Config {
	cfg := DefaultConfig()
	cfg.LocateOnInit = false
	return cfg
}

func newTestService(t *testing.T, cfg Config, p domain.PositionProvider) (*Service, *recorder) {
	t.Helper()
	bus := eventbus.New(logger.Discard())
	rec := newRecorder(bus)
	svc := New(context.Background(), cfg, p, bus, logger.Discard())
	t.Cleanup(svc.Close)
	return svc, rec
}

// --- construction ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.LocateOnInit)
	assert.Equal(t, ModeLocate, cfg.LocateOnInitMode)
	assert.False(t, cfg.PositionOptions.EnableHighAccuracy)
	assert.Equal(t, 10000, cfg.PositionOptions.TimeoutMillis)
	assert.Equal(t, 0, cfg.PositionOptions.MaxCacheAgeMillis)
}

func TestLocateOnInitResolves(t *testing.T) {
	p := newFakeProvider()
	svc, rec := newTestService(t, DefaultConfig(), p)

	require.Len(t, p.once, 1)
	p.respondOnce(0, reading(1, 2, 5))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventLocate, events[0].Type)
	require.NotNil(t, events[0].Position)
	assert.Equal(t, domain.Position{
		Latitude:       1,
		Longitude:      2,
		AccuracyMeters: 5,
	}, *events[0].Position)
	assert.Equal(t, domain.DirectionNone, events[0].Position.CardinalDirection)

	pos, ok := svc.Position()
	require.True(t, ok)
	assert.Equal(t, 1.0, pos.Latitude)
}

func TestWatchOnInitDeliversEveryReadingInOrder(t *testing.T) {
	p := newFakeProvider()
	cfg := DefaultConfig()
	cfg.LocateOnInitMode = ModeWatch
	svc, rec := newTestService(t, cfg, p)

	require.True(t, svc.Watching())
	for i := 1; i <= 3; i++ {
		p.deliver("watch-1", reading(float64(i), float64(i), 1))
	}

	locates := rec.ofType(domain.EventLocate)
	require.Len(t, locates, 3)
	for i, e := range locates {
		assert.Equal(t, float64(i+1), e.Position.Latitude)
	}
	assert.Empty(t, rec.ofType(domain.EventError))
}

func TestUnsupportedProvider(t *testing.T) {
	p := newFakeProvider()
	p.supported = false
	svc, rec := newTestService(t, DefaultConfig(), p)

	svc.LocateOnce(context.Background())
	svc.Watch(context.Background())
	svc.StopWatch()

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventError, events[0].Type)
	assert.Equal(t, domain.CodeUnsupported, events[0].Err.Code)
	assert.Equal(t, "capability unsupported", events[0].Err.Message)
	assert.ErrorIs(t, events[0].Err, domain.ErrUnsupported)
	assert.Zero(t, p.requestCount())
}

func TestNilProviderIsUnsupported(t *testing.T) {
	_, rec := newTestService(t, DefaultConfig(), nil)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.CodeUnsupported, events[0].Err.Code)
}

func TestInvalidModeIsNonFatal(t *testing.T) {
	p := newFakeProvider()
	cfg := DefaultConfig()
	cfg.LocateOnInitMode = "follow"
	svc, rec := newTestService(t, cfg, p)

	errs := rec.ofType(domain.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.CodeInvalidConfig, errs[0].Err.Code)
	assert.Equal(t, "invalid configuration", errs[0].Err.Message)
	assert.Zero(t, p.requestCount())

	svc.LocateOnce(context.Background())
	p.respondOnce(0, reading(1, 1, 1))
	assert.Len(t, rec.ofType(domain.EventLocate), 1)
}

func TestLocateOnInitDisabled(t *testing.T) {
	p := newFakeProvider()
	_, rec := newTestService(t, idleConfig(), p)

	assert.Zero(t, p.requestCount())
	assert.Empty(t, rec.all())
}

// --- one-shot ---

func TestLocateOnceTimeout(t *testing.T) {
	p := newFakeProvider()
	cfg := idleConfig()
	cfg.PositionOptions.TimeoutMillis = 10
	svc, rec := newTestService(t, cfg, p)

	start := time.Now()
	svc.LocateOnce(context.Background())

	require.Eventually(t, func() bool {
		return len(rec.all()) == 1
	}, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	events := rec.all()
	assert.Equal(t, domain.EventError, events[0].Type)
	assert.Equal(t, domain.CodeTimeout, events[0].Err.Code)
	assert.Equal(t, "timeout", events[0].Err.Message)

	// a late provider answer for the timed-out request is suppressed
	p.respondOnce(0, reading(1, 2, 3))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.all(), 1)
	assert.Empty(t, rec.ofType(domain.EventLocate))
}

func TestLocateOnceSuccessSuppressesTimeout(t *testing.T) {
	p := newFakeProvider()
	cfg := idleConfig()
	cfg.PositionOptions.TimeoutMillis = 10
	svc, rec := newTestService(t, cfg, p)

	svc.LocateOnce(context.Background())
	p.respondOnce(0, reading(1, 2, 3))
	time.Sleep(30 * time.Millisecond)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventLocate, events[0].Type)
}

func TestLocateOnceProviderErrorPassesThrough(t *testing.T) {
	p := newFakeProvider()
	svc, rec := newTestService(t, idleConfig(), p)

	svc.LocateOnce(context.Background())
	providerErr := domain.NewPositionError(domain.CodePermissionDenied, "User denied Geolocation")
	p.respondOnce(0, domain.Result{Err: providerErr})

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, providerErr, events[0].Err)
	_, ok := svc.Position()
	assert.False(t, ok)
}

func TestLocateOnceRequestFailure(t *testing.T) {
	p := newFakeProvider()
	p.requestErr = errors.New("bridge connection closed")
	svc, rec := newTestService(t, idleConfig(), p)

	svc.LocateOnce(context.Background())

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.CodePositionUnavailable, events[0].Err.Code)
	assert.Contains(t, events[0].Err.Message, "bridge connection closed")

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.all(), 1)
}

func TestLocateOnceSupersedesPendingTimeout(t *testing.T) {
	p := newFakeProvider()
	cfg := idleConfig()
	cfg.PositionOptions.TimeoutMillis = 20
	svc, rec := newTestService(t, cfg, p)

	svc.LocateOnce(context.Background())
	svc.LocateOnce(context.Background())
	p.respondOnce(1, reading(2, 2, 2))
	time.Sleep(50 * time.Millisecond)

	require.Len(t, rec.all(), 1, "first request's timeout must be cancelled")
	assert.Equal(t, domain.EventLocate, rec.all()[0].Type)

	// the superseded request's late answer is still processed
	p.respondOnce(0, reading(1, 1, 1))
	locates := rec.ofType(domain.EventLocate)
	require.Len(t, locates, 2)
	assert.Equal(t, 1.0, locates[1].Position.Latitude)
}

func TestLocateOnceResolvesOnlyOnce(t *testing.T) {
	p := newFakeProvider()
	svc, rec := newTestService(t, idleConfig(), p)

	svc.LocateOnce(context.Background())
	p.respondOnce(0, reading(1, 1, 1))
	p.respondOnce(0, domain.Result{Err: domain.NewPositionError(2, "late")})

	assert.Len(t, rec.all(), 1)
}

func TestCloseCancelsPendingTimeout(t *testing.T) {
	p := newFakeProvider()
	cfg := idleConfig()
	cfg.PositionOptions.TimeoutMillis = 10
	svc, rec := newTestService(t, cfg, p)

	svc.LocateOnce(context.Background())
	svc.Close()
	time.Sleep(30 * time.Millisecond)

	assert.Empty(t, rec.all())
}

// --- watch ---

func TestWatchMergesPosition(t *testing.T) {
	p := newFakeProvider()
	svc, rec := newTestService(t, idleConfig(), p)

	svc.Watch(context.Background())
	p.deliver("watch-1", domain.Result{Reading: &domain.Reading{
		Latitude: 1, Longitude: 1, Accuracy: 1,
		Heading: domain.Float64(90), Altitude: domain.Float64(10),
	}})
	p.deliver("watch-1", reading(5, 6, 7))

	locates := rec.ofType(domain.EventLocate)
	require.Len(t, locates, 2)
	last := locates[1].Position
	assert.Equal(t, 5.0, last.Latitude)
	assert.Equal(t, 6.0, last.Longitude)
	assert.Equal(t, 7.0, last.AccuracyMeters)
	require.NotNil(t, last.HeadingDegrees)
	assert.Equal(t, 90.0, *last.HeadingDegrees)
	require.NotNil(t, last.AltitudeMeters)
	assert.Equal(t, 10.0, *last.AltitudeMeters)
	assert.Equal(t, domain.DirectionEast, last.CardinalDirection)

	// the first event's payload is not mutated by the later merge
	assert.Equal(t, 1.0, locates[0].Position.Latitude)
}

func TestWatchRepeatsErrors(t *testing.T) {
	p := newFakeProvider()
	svc, rec := newTestService(t, idleConfig(), p)

	svc.Watch(context.Background())
	unavailable := domain.Result{Err: domain.NewPositionError(domain.CodePositionUnavailable, "no fix")}
	p.deliver("watch-1", unavailable)
	p.deliver("watch-1", reading(1, 1, 1))
	p.deliver("watch-1", unavailable)

	events := rec.all()
	require.Len(t, events, 3)
	assert.Equal(t, []domain.EventType{domain.EventError, domain.EventLocate, domain.EventError},
		[]domain.EventType{events[0].Type, events[1].Type, events[2].Type})
	assert.True(t, svc.Watching())
}

func TestStopWatch(t *testing.T) {
	p := newFakeProvider()
	svc, rec := newTestService(t, idleConfig(), p)

	svc.Watch(context.Background())
	svc.StopWatch()

	assert.False(t, svc.Watching())
	assert.Equal(t, []domain.WatchHandle{"watch-1"}, p.cancelled)

	// stray callbacks after stop are dropped
	p.deliver("watch-1", reading(1, 1, 1))
	assert.Empty(t, rec.all())
}

func TestStopWatchWhenIdle(t *testing.T) {
	p := newFakeProvider()
	svc, rec := newTestService(t, idleConfig(), p)

	svc.StopWatch()
	assert.Empty(t, p.cancelled)
	assert.Empty(t, rec.all())
}

func TestWatchReplacesActiveWatch(t *testing.T) {
	p := newFakeProvider()
	svc, rec := newTestService(t, idleConfig(), p)

	svc.Watch(context.Background())
	svc.Watch(context.Background())

	assert.Equal(t, []domain.WatchHandle{"watch-1"}, p.cancelled)
	p.deliver("watch-1", reading(1, 1, 1))
	p.deliver("watch-2", reading(2, 2, 2))

	locates := rec.ofType(domain.EventLocate)
	require.Len(t, locates, 1)
	assert.Equal(t, 2.0, locates[0].Position.Latitude)
}

func TestWatchStartFailure(t *testing.T) {
	p := newFakeProvider()
	p.startErr = errors.New("write failed")
	svc, rec := newTestService(t, idleConfig(), p)

	svc.Watch(context.Background())

	assert.False(t, svc.Watching())
	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.CodePositionUnavailable, events[0].Err.Code)
}

func TestWatchHasNoTimeout(t *testing.T) {
	p := newFakeProvider()
	cfg := idleConfig()
	cfg.PositionOptions.TimeoutMillis = 5
	svc, rec := newTestService(t, cfg, p)

	svc.Watch(context.Background())
	time.Sleep(30 * time.Millisecond)

	assert.Empty(t, rec.all())
}
