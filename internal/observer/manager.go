// Package observer is the out-of-process side of the pipeline: it consumes
// the serialized event stream, reconstructs session records, enriches sealed
// sessions with profiling data and runs insight analysis over them.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Harishwarrior/jankkiller/internal/domain"
	"github.com/Harishwarrior/jankkiller/internal/insights"
	"github.com/Harishwarrior/jankkiller/internal/transport"
)

// ErrUnknownSession marks a screen_end for a session id that was never
// started here. It means start events were lost or ids were corrupted, and
// the session can never be analyzed, so it is surfaced rather than dropped.
var ErrUnknownSession = errors.New("end event for unknown session")

// DefaultMaxSessions caps retained sessions; the oldest is evicted first.
const DefaultMaxSessions = 500

// Manager reconstructs screen sessions from the event stream. Unlike the
// instrumented side it is fed from a network read loop, so all state is
// mutex-guarded.
type Manager struct {
	mu              sync.Mutex
	sessions        map[string]*domain.Session
	order           []string
	activeID        string
	streamedFrames  int64
	collectorFrames int64

	maxSessions int
	correlator  *Correlator
	notifier    *notifier
	logger      *zerolog.Logger

	// OnInsights, when set before events flow, observes every analysis
	// result (metrics feed). Called outside the manager lock.
	OnInsights func([]domain.Insight)
}

// NewManager builds a manager. onChange is invoked (throttled for frame
// traffic, immediately for lifecycle changes) whenever the session set
// mutates; nil disables notification.
func NewManager(correlator *Correlator, onChange func(), logger *zerolog.Logger) *Manager {
	return &Manager{
		sessions:    make(map[string]*domain.Session),
		maxSessions: DefaultMaxSessions,
		correlator:  correlator,
		notifier:    newNotifier(notifyInterval, onChange),
		logger:      logger,
	}
}

// SetMaxSessions adjusts the retention cap. <=0 disables eviction.
func (m *Manager) SetMaxSessions(n int) {
	m.mu.Lock()
	m.maxSessions = n
	m.mu.Unlock()
}

// HandleEnvelope dispatches one event from the stream. Envelope kinds this
// stream does not own are ignored. The only error returned is
// ErrUnknownSession; every other anomaly is an expected no-op.
func (m *Manager) HandleEnvelope(env transport.Envelope) error {
	switch env.Kind {
	case transport.KindScreenStart:
		var p transport.ScreenStart
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("observer: bad %s payload: %w", env.Kind, err)
		}
		m.handleScreenStart(p)
	case transport.KindScreenEnd:
		var p transport.ScreenEnd
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("observer: bad %s payload: %w", env.Kind, err)
		}
		return m.handleScreenEnd(p)
	case transport.KindFrameBatch:
		var p transport.FrameBatch
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("observer: bad %s payload: %w", env.Kind, err)
		}
		m.handleFrameBatch(p)
	case transport.KindCollectorStart:
		// nothing to record; the next frame batch carries the data
	case transport.KindCollectorStop:
		var p transport.CollectorSignal
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("observer: bad %s payload: %w", env.Kind, err)
		}
		if p.TotalFrames != nil {
			m.mu.Lock()
			m.collectorFrames = *p.TotalFrames
			m.mu.Unlock()
		}
	}
	return nil
}

// handleScreenStart registers a new session, or, on retransmitted
// duplicates, just re-points the active reference at the existing record.
func (m *Manager) handleScreenStart(p transport.ScreenStart) {
	m.mu.Lock()
	if _, ok := m.sessions[p.SessionID]; ok {
		m.activeID = p.SessionID
		m.mu.Unlock()
		m.logger.Debug().Str("session", p.SessionID).Msg("duplicate screen_start, re-pointing active session")
		return
	}
	sess := &domain.Session{
		ID:              p.SessionID,
		Route:           p.Route,
		StartTimeMicros: p.Timestamp,
		IsPopup:         p.IsPopup,
		PreviousRoute:   p.PreviousRoute,
		Frames:          make([]domain.FrameMetric, 0, 64),
	}
	m.insertLocked(sess)
	m.activeID = sess.ID
	m.mu.Unlock()
	m.logger.Info().Str("session", sess.ID).Str("route", sess.Route).Msg("screen session opened")
	m.notifier.Fire()
}

func (m *Manager) handleScreenEnd(p transport.ScreenEnd) error {
	m.mu.Lock()
	sess, ok := m.sessions[p.SessionID]
	if !ok {
		m.mu.Unlock()
		m.logger.Error().Str("session", p.SessionID).Str("route", p.Route).Msg("screen_end for unknown session")
		return fmt.Errorf("%w: %s", ErrUnknownSession, p.SessionID)
	}
	sess.End(p.Timestamp)
	// the newest still-open session becomes active, if any
	m.activeID = ""
	for i := len(m.order) - 1; i >= 0; i-- {
		if s := m.sessions[m.order[i]]; s != nil && s.Active() {
			m.activeID = s.ID
			break
		}
	}
	m.mu.Unlock()
	m.logger.Info().
		Str("session", sess.ID).
		Str("route", sess.Route).
		Int64("durationMicros", p.DurationMicros).
		Int("frames", p.FrameCount).
		Msg("screen session sealed")
	go m.enrich(sess)
	m.notifier.Fire()
	return nil
}

// handleFrameBatch appends the batch to the active session. Batches with no
// active session are dropped, not buffered: metrics without a session have
// nothing to attach to.
func (m *Manager) handleFrameBatch(p transport.FrameBatch) {
	m.mu.Lock()
	sess := m.sessions[m.activeID]
	if m.activeID == "" || sess == nil {
		m.mu.Unlock()
		return
	}
	for _, f := range p.Frames {
		if sess.AppendFrame(f) {
			m.streamedFrames++
		}
	}
	m.mu.Unlock()
	m.notifier.Trigger()
}

// enrich runs the telemetry correlation for a sealed session, then the
// insight engine, then notifies listeners exactly once. There is no retry
// and no timeout here: a hung backend stalls only this session's enrichment.
func (m *Manager) enrich(sess *domain.Session) {
	var (
		cpu    json.RawMessage
		events []domain.TimelineEvent
	)
	if m.correlator != nil {
		m.mu.Lock()
		start := sess.StartTimeMicros
		extent := sess.DurationMicros()
		m.mu.Unlock()
		cpu, events = m.correlator.Collect(context.Background(), start, extent)
	}
	m.mu.Lock()
	if cpu != nil {
		sess.CPUProfile = cpu
	}
	if events != nil {
		sess.TimelineEvents = events
	}
	result := insights.Analyze(sess)
	sess.Insights = result
	m.mu.Unlock()
	if m.OnInsights != nil {
		m.OnInsights(result)
	}
	m.notifier.Fire()
}

// insertLocked appends a session, evicting the oldest past capacity.
func (m *Manager) insertLocked(sess *domain.Session) {
	if m.maxSessions > 0 && len(m.order) >= m.maxSessions {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.sessions, oldest)
	}
	m.sessions[sess.ID] = sess
	m.order = append(m.order, sess.ID)
}

// Sessions returns snapshots of every known session in arrival order.
func (m *Manager) Sessions() []*domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Session, 0, len(m.order))
	for _, sid := range m.order {
		if s := m.sessions[sid]; s != nil {
			out = append(out, s.Clone())
		}
	}
	return out
}

// CompletedSessions returns snapshots of sealed sessions in arrival order.
func (m *Manager) CompletedSessions() []*domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Session, 0, len(m.order))
	for _, sid := range m.order {
		if s := m.sessions[sid]; s != nil && !s.Active() {
			out = append(out, s.Clone())
		}
	}
	return out
}

// Session returns a snapshot of one session by id.
func (m *Manager) Session(sid string) (*domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sid]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// ActiveID is the id of the session frame batches currently attach to, or
// "" when every session is sealed.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// TotalFrames prefers the collector's own count from collector_stop and
// falls back to the number of streamed frames.
func (m *Manager) TotalFrames() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collectorFrames > 0 {
		return m.collectorFrames
	}
	return m.streamedFrames
}

// Load registers imported sessions. Ids that already exist are skipped so an
// import never clobbers live data. Returns the number added.
func (m *Manager) Load(sessions []*domain.Session) int {
	m.mu.Lock()
	added := 0
	for _, s := range sessions {
		if s == nil || s.ID == "" {
			continue
		}
		if _, ok := m.sessions[s.ID]; ok {
			continue
		}
		m.insertLocked(s.Clone())
		added++
	}
	m.mu.Unlock()
	if added > 0 {
		m.notifier.Fire()
	}
	return added
}
