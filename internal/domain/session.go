package domain

import "encoding/json"

// TimelineEvent is one opaque record from the VM timeline. Keys and value
// shapes are owned by the engine; detectors only look at well-known keys.
type TimelineEvent map[string]any

// Name returns the event's "name" field, or "" when absent or not a string.
func (e TimelineEvent) Name() string {
	if n, ok := e["name"].(string); ok {
		return n
	}
	return ""
}

// Session is one continuous period during which a single route was the
// active screen. A session is active iff EndTimeMicros is nil; once ended it
// never re-opens and its frames become immutable (only telemetry and insight
// fields may still be filled in by enrichment).
type Session struct {
	ID              string          `json:"id"`
	Route           string          `json:"route"`
	StartTimeMicros int64           `json:"startTimeMicros"`
	EndTimeMicros   *int64          `json:"endTimeMicros"`
	IsPopup         bool            `json:"isPopup"`
	PreviousRoute   *string         `json:"previousRoute"`
	Frames          []FrameMetric   `json:"frames"`
	TimelineEvents  []TimelineEvent `json:"timelineEvents,omitempty"`
	Insights        []Insight       `json:"insights,omitempty"`
	CPUProfile      json.RawMessage `json:"cpuProfile,omitempty"`
	MemoryStats     json.RawMessage `json:"memoryStats,omitempty"`
}

func (s *Session) Active() bool { return s.EndTimeMicros == nil }

// DurationMicros is end−start for an ended session and 0 while active.
func (s *Session) DurationMicros() int64 {
	if s.EndTimeMicros == nil {
		return 0
	}
	return *s.EndTimeMicros - s.StartTimeMicros
}

// End seals the session. The first call wins; later calls are no-ops so the
// end timestamp is never rewritten.
func (s *Session) End(tsMicros int64) {
	if s.EndTimeMicros != nil {
		return
	}
	s.EndTimeMicros = &tsMicros
}

// AppendFrame attaches a frame metric. Frames are append-only and keep
// arrival order; appending to an ended session is rejected.
func (s *Session) AppendFrame(f FrameMetric) bool {
	if s.EndTimeMicros != nil {
		return false
	}
	s.Frames = append(s.Frames, f)
	return true
}

// Clone returns a copy whose slices do not share backing arrays with the
// original, so callers can read it without holding the owner's lock.
func (s *Session) Clone() *Session {
	c := *s
	if s.EndTimeMicros != nil {
		v := *s.EndTimeMicros
		c.EndTimeMicros = &v
	}
	if s.PreviousRoute != nil {
		v := *s.PreviousRoute
		c.PreviousRoute = &v
	}
	c.Frames = append([]FrameMetric(nil), s.Frames...)
	c.TimelineEvents = append([]TimelineEvent(nil), s.TimelineEvents...)
	c.Insights = append([]Insight(nil), s.Insights...)
	c.CPUProfile = append(json.RawMessage(nil), s.CPUProfile...)
	c.MemoryStats = append(json.RawMessage(nil), s.MemoryStats...)
	if len(c.CPUProfile) == 0 {
		c.CPUProfile = nil
	}
	if len(c.MemoryStats) == 0 {
		c.MemoryStats = nil
	}
	return &c
}
