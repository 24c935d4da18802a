package locate

import "time"

// oneShot tracks a single LocateOnce call. All fields are guarded by
// Service.mu.
type oneShot struct {
	id    uint64
	timer *time.Timer

	// resolved is set by whichever of provider result or timeout wins.
	resolved bool
	// superseded is set when a newer request cancelled this one's timeout.
	// A late provider result is still processed.
	superseded bool
}

// stopTimer cancels the pending timeout. The timer callback re-checks the
// flags under the lock, so a timer that already fired is harmless.
func (r *oneShot) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
	}
}
