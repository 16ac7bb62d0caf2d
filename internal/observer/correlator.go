package observer

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/Harishwarrior/jankkiller/internal/domain"
)

// TimelineSnapshot is the profiling backend's full timeline dump. The
// backend has no windowed timeline query, so the whole snapshot is fetched.
type TimelineSnapshot struct {
	TraceEvents []domain.TimelineEvent `json:"traceEvents"`
}

// ProfilingBackend is the out-of-band profiling data source. Both calls are
// best-effort: a nil payload with a nil error means "no data available",
// which callers must treat as normal, not as a failure.
type ProfilingBackend interface {
	CPUSamples(ctx context.Context, isolateID string, startMicros, extentMicros int64) (json.RawMessage, error)
	VMTimeline(ctx context.Context) (*TimelineSnapshot, error)
}

// Correlator fetches profiling data for a sealed session's time window. A
// backend failure or a missing connection degrades to empty enrichment; it
// is never fatal to the pipeline.
type Correlator struct {
	backend   ProfilingBackend
	isolateID string
	logger    *zerolog.Logger
}

// NewCorrelator wraps a backend; backend may be nil when no profiling
// connection exists.
func NewCorrelator(backend ProfilingBackend, isolateID string, logger *zerolog.Logger) *Correlator {
	return &Correlator{backend: backend, isolateID: isolateID, logger: logger}
}

// Collect fetches CPU samples for exactly the given window plus the full
// timeline snapshot. Either return value may be nil.
func (c *Correlator) Collect(ctx context.Context, startMicros, extentMicros int64) (json.RawMessage, []domain.TimelineEvent) {
	if c == nil || c.backend == nil {
		return nil, nil
	}
	cpu, err := c.backend.CPUSamples(ctx, c.isolateID, startMicros, extentMicros)
	if err != nil {
		c.logger.Warn().Err(err).Msg("cpu sample fetch failed, continuing without profile")
		cpu = nil
	}
	var events []domain.TimelineEvent
	snapshot, err := c.backend.VMTimeline(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("timeline fetch failed, continuing without timeline")
	} else if snapshot != nil {
		events = snapshot.TraceEvents
	}
	return cpu, events
}
