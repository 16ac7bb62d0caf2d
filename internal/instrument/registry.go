package instrument

import (
	"github.com/rs/zerolog"

	"github.com/Harishwarrior/jankkiller/internal/domain"
	"github.com/Harishwarrior/jankkiller/internal/export"
	"github.com/Harishwarrior/jankkiller/internal/transport"
)

// Registry is the composition root on the instrumented side. It owns the
// lifecycle tracker and the frame collector, and routes per-frame metrics
// from the collector into whichever session is currently on top of the
// tracker's stack.
//
// Lifecycle tracking is always passively listening; only frame capture can
// be toggled.
type Registry struct {
	tracker   *Tracker
	collector *Collector
	logger    *zerolog.Logger
}

func NewRegistry(source FrameTimingSource, sink transport.Sink, hooks SessionHooks, logger *zerolog.Logger) *Registry {
	r := &Registry{
		tracker: NewTracker(sink, hooks, logger),
		logger:  logger,
	}
	r.collector = NewCollector(source, sink, logger)
	r.collector.OnFrame = r.tracker.AddFrameToActiveSession
	return r
}

// Tracker exposes the lifecycle tracker so the host's navigation observer
// can be wired to it.
func (r *Registry) Tracker() *Tracker { return r.tracker }

// StartCollecting begins frame capture. Idempotent.
func (r *Registry) StartCollecting() { r.collector.Start() }

// StopCollecting pauses frame capture, flushing any partial batch. Idempotent.
func (r *Registry) StopCollecting() { r.collector.Stop() }

// Reset stops capture and rewinds the frame counter.
func (r *Registry) Reset() { r.collector.Reset() }

// Collecting reports whether frame capture is running.
func (r *Registry) Collecting() bool { return r.collector.started }

// CurrentSession is the active top-of-stack session, or nil.
func (r *Registry) CurrentSession() *domain.Session { return r.tracker.Current() }

// CompletedSessions returns closed sessions in completion order.
func (r *Registry) CompletedSessions() []*domain.Session { return r.tracker.Completed() }

// TotalFrames is the collector's process-lifetime frame count.
func (r *Registry) TotalFrames() int64 { return r.collector.TotalFrames() }

// ExportData serializes the metadata envelope plus every completed session.
// The currently active session, if any, is not included.
func (r *Registry) ExportData(meta export.Meta) export.Archive {
	meta.SchemaVersion = export.SchemaVersion
	meta.TotalFrames = r.collector.TotalFrames()
	if meta.Timestamp == 0 {
		meta.Timestamp = nowMicros()
	}
	sessions := make([]*domain.Session, 0, len(r.tracker.completed))
	for _, s := range r.tracker.completed {
		sessions = append(sessions, s.Clone())
	}
	return export.Archive{Meta: meta, Sessions: sessions}
}
