package sync

import (
	"sync"
	"time"
)

// DefaultDebounceInterval is the trailing-edge window for deferred remote
// saves; rapid consecutive edits collapse into a single write.
const DefaultDebounceInterval = time.Second

// Debouncer is an arm/cancel/fire-once timer. Arm resets the window on every
// call (trailing edge, never leading), and Cancel stops a pending fire so a
// torn-down editing view cannot write stale captured state.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceInterval
	}
	return &Debouncer{delay: delay}
}

// Arm schedules fn after the delay, replacing any pending schedule.
func (d *Debouncer) Arm(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Cancel stops the pending fire, if any. A function already running is allowed
// to complete.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
