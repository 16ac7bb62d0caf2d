package observer

import (
	"sync"
	"time"
)

// notifyInterval is the minimum spacing between change notifications driven
// by frame traffic. Tests depend on the exact constant.
const notifyInterval = 100 * time.Millisecond

// notifier is a timer-gated publisher: bursts of Trigger calls within the
// window coalesce into exactly one trailing notification, so listeners see
// at most one callback per window but always see the latest state.
type notifier struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	now      func() time.Time
	after    func(d time.Duration, f func())

	last    time.Time
	pending bool
}

func newNotifier(interval time.Duration, fn func()) *notifier {
	if fn == nil {
		fn = func() {}
	}
	return &notifier{
		interval: interval,
		fn:       fn,
		now:      time.Now,
		after:    func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// Trigger requests a notification; it fires now if the window has passed,
// otherwise schedules the single trailing notification.
func (n *notifier) Trigger() {
	n.mu.Lock()
	elapsed := n.now().Sub(n.last)
	if elapsed >= n.interval {
		n.last = n.now()
		n.pending = false
		n.mu.Unlock()
		n.fn()
		return
	}
	if !n.pending {
		n.pending = true
		n.after(n.interval-elapsed, n.flush)
	}
	n.mu.Unlock()
}

// Fire notifies immediately, absorbing any scheduled trailing notification.
func (n *notifier) Fire() {
	n.mu.Lock()
	n.last = n.now()
	n.pending = false
	n.mu.Unlock()
	n.fn()
}

func (n *notifier) flush() {
	n.mu.Lock()
	if !n.pending {
		n.mu.Unlock()
		return
	}
	n.pending = false
	n.last = n.now()
	n.mu.Unlock()
	n.fn()
}
