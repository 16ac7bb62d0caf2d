package observer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimer drives the notifier deterministically: time only moves when the
// test advances it, and scheduled callbacks run on advance.
type fakeTimer struct {
	now       time.Time
	scheduled []scheduledCall
}

type scheduledCall struct {
	at time.Time
	fn func()
}

func (ft *fakeTimer) Now() time.Time { return ft.now }

func (ft *fakeTimer) After(d time.Duration, fn func()) {
	ft.scheduled = append(ft.scheduled, scheduledCall{at: ft.now.Add(d), fn: fn})
}

func (ft *fakeTimer) Advance(d time.Duration) {
	ft.now = ft.now.Add(d)
	var remaining []scheduledCall
	for _, c := range ft.scheduled {
		if !c.at.After(ft.now) {
			c.fn()
		} else {
			remaining = append(remaining, c)
		}
	}
	ft.scheduled = remaining
}

func newFakeNotifier(interval time.Duration) (*notifier, *fakeTimer, *int) {
	fired := 0
	n := newNotifier(interval, func() { fired++ })
	ft := &fakeTimer{now: time.Unix(1000, 0)}
	n.now = ft.Now
	n.after = ft.After
	return n, ft, &fired
}

func TestTriggerFiresWhenWindowOpen(t *testing.T) {
	n, ft, fired := newFakeNotifier(100 * time.Millisecond)
	ft.Advance(time.Second) // well past the zero-value last-fire time
	n.Trigger()
	assert.Equal(t, 1, *fired)
}

func TestBurstCoalescesIntoOneTrailingNotification(t *testing.T) {
	n, ft, fired := newFakeNotifier(100 * time.Millisecond)
	ft.Advance(time.Second)
	n.Trigger()
	require.Equal(t, 1, *fired)
	// burst inside the window
	for i := 0; i < 50; i++ {
		n.Trigger()
	}
	assert.Equal(t, 1, *fired, "burst must not fire inside the window")
	ft.Advance(100 * time.Millisecond)
	assert.Equal(t, 2, *fired, "exactly one trailing notification after the window")
	// nothing else scheduled
	ft.Advance(time.Second)
	assert.Equal(t, 2, *fired)
}

func TestTrailingNotificationNeverLost(t *testing.T) {
	n, ft, fired := newFakeNotifier(100 * time.Millisecond)
	ft.Advance(time.Second)
	n.Trigger()
	n.Trigger() // schedules trailing
	require.Equal(t, 1, *fired)
	ft.Advance(40 * time.Millisecond)
	n.Trigger() // still inside window, must not double-schedule
	ft.Advance(60 * time.Millisecond)
	assert.Equal(t, 2, *fired, "the final update must always be delivered")
}

func TestFireAbsorbsScheduledTrailing(t *testing.T) {
	n, ft, fired := newFakeNotifier(100 * time.Millisecond)
	ft.Advance(time.Second)
	n.Trigger()
	n.Trigger() // trailing scheduled
	n.Fire()    // immediate notification supersedes it
	require.Equal(t, 2, *fired)
	ft.Advance(200 * time.Millisecond)
	assert.Equal(t, 2, *fired, "absorbed trailing notification must not fire")
}
