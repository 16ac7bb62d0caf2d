package instrument

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Harishwarrior/jankkiller/internal/domain"
	"github.com/Harishwarrior/jankkiller/internal/transport"
	"github.com/Harishwarrior/jankkiller/pkg/shared/id"
)

// RouteInfo describes a host navigation route at the event boundary. Host
// route objects are not guaranteed stable across events, so sessions are
// matched by resolved name, never by identity.
type RouteInfo struct {
	Name     string // explicit route name, if the host set one
	Argument string // named-argument fallback
	Type     string // runtime type of the host route
	Hash     uint32 // instance-unique identity hash
	IsPopup  bool   // dialog/sheet rather than a full screen
}

// DisplayName resolves the session's route name: explicit name, then named
// argument, then a derived "<type>#<hash>" fallback.
func (r RouteInfo) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	if r.Argument != "" {
		return r.Argument
	}
	return fmt.Sprintf("%s#%x", r.Type, r.Hash)
}

// SessionHooks are collaborator callbacks fired on session transitions.
type SessionHooks struct {
	OnSessionStart func(*domain.Session)
	OnSessionEnd   func(*domain.Session)
}

// Tracker maintains the stack of active sessions that nested navigation
// produces (a dialog over a screen is two stacked sessions). It exclusively
// owns the stack; the host's event loop is the only caller.
type Tracker struct {
	sink   transport.Sink
	hooks  SessionHooks
	logger *zerolog.Logger
	now    func() int64

	active    []*domain.Session
	completed []*domain.Session
}

func NewTracker(sink transport.Sink, hooks SessionHooks, logger *zerolog.Logger) *Tracker {
	return &Tracker{sink: sink, hooks: hooks, logger: logger, now: nowMicros}
}

// Push creates a session for a newly current route and emits screen_start.
func (t *Tracker) Push(route RouteInfo, previous *RouteInfo) {
	sess := &domain.Session{
		ID:              id.New(),
		Route:           route.DisplayName(),
		StartTimeMicros: t.now(),
		IsPopup:         route.IsPopup,
		Frames:          make([]domain.FrameMetric, 0, BatchSize),
	}
	if previous != nil {
		name := previous.DisplayName()
		sess.PreviousRoute = &name
	}
	t.active = append(t.active, sess)
	t.emit(transport.KindScreenStart, transport.ScreenStart{
		SessionID:     sess.ID,
		Route:         sess.Route,
		Timestamp:     sess.StartTimeMicros,
		IsPopup:       sess.IsPopup,
		PreviousRoute: sess.PreviousRoute,
	})
	t.logger.Debug().Str("session", sess.ID).Str("route", sess.Route).Msg("screen session started")
	if t.hooks.OnSessionStart != nil {
		t.hooks.OnSessionStart(sess)
	}
}

// Pop ends the session for a popped route. A pop for a route that was never
// tracked, or whose session is already closed, is a no-op.
func (t *Tracker) Pop(route RouteInfo) {
	t.endByName(route.DisplayName())
}

// Remove is the host's out-of-order removal signal; it ends the matching
// session the same way Pop does.
func (t *Tracker) Remove(route RouteInfo) {
	t.endByName(route.DisplayName())
}

// Replace ends the old route's session, if any, then starts a session for
// the new route with no previous-route attribution.
func (t *Tracker) Replace(newRoute RouteInfo, oldRoute *RouteInfo) {
	if oldRoute != nil {
		t.endByName(oldRoute.DisplayName())
	}
	t.Push(newRoute, nil)
}

// AddFrameToActiveSession attaches a frame metric to the top-of-stack
// session. Frames timestamped before the session started are dropped: they
// belong to a just-closed session and arrived late.
func (t *Tracker) AddFrameToActiveSession(f domain.FrameMetric) {
	sess := t.Current()
	if sess == nil {
		return
	}
	if f.TimestampMicros < sess.StartTimeMicros {
		return
	}
	sess.AppendFrame(f)
}

// Current is the top of the active stack, or nil when nothing is tracked.
func (t *Tracker) Current() *domain.Session {
	if len(t.active) == 0 {
		return nil
	}
	return t.active[len(t.active)-1]
}

// Completed returns the closed sessions in completion order.
func (t *Tracker) Completed() []*domain.Session { return t.completed }

// endByName finds the most recently pushed active session with the given
// route name and seals it. When two stacked sessions share a name the newer
// one wins; that LIFO resolution is deliberate, since name plus active
// status is all the host event gives us to match on.
func (t *Tracker) endByName(name string) {
	for i := len(t.active) - 1; i >= 0; i-- {
		sess := t.active[i]
		if sess.Route != name || !sess.Active() {
			continue
		}
		t.active = append(t.active[:i], t.active[i+1:]...)
		sess.End(t.now())
		t.completed = append(t.completed, sess)
		t.emit(transport.KindScreenEnd, transport.ScreenEnd{
			SessionID:      sess.ID,
			Route:          sess.Route,
			Timestamp:      *sess.EndTimeMicros,
			DurationMicros: sess.DurationMicros(),
			FrameCount:     len(sess.Frames),
		})
		t.logger.Debug().
			Str("session", sess.ID).
			Str("route", sess.Route).
			Int64("durationMicros", sess.DurationMicros()).
			Msg("screen session ended")
		if t.hooks.OnSessionEnd != nil {
			t.hooks.OnSessionEnd(sess)
		}
		return
	}
}

func (t *Tracker) emit(kind string, payload any) {
	if t.sink == nil {
		return
	}
	if err := t.sink.Emit(kind, payload); err != nil {
		t.logger.Warn().Err(err).Str("kind", kind).Msg("event emit failed")
	}
}
