// Package instrument is the in-process side of the pipeline: it observes the
// host framework's navigation and frame-timing callbacks, correlates them
// into screen sessions, and ships events to the observer over a
// transport.Sink.
//
// The host framework delivers all callbacks on its single event loop, so
// nothing in this package takes a lock; each type is exclusively owned by
// that loop.
package instrument

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Harishwarrior/jankkiller/internal/domain"
	"github.com/Harishwarrior/jankkiller/internal/transport"
)

// BatchSize is the number of frames buffered before a batch event is
// emitted. Batching is the backpressure mechanism: it trades latency for
// event volume, and tests depend on the exact constant.
const BatchSize = 30

// RawFrameTiming is one sample from the host rendering pipeline, before a
// frame number is assigned.
type RawFrameTiming struct {
	TimestampMicros      int64
	BuildDurationMicros  int64
	RasterDurationMicros int64
	TotalDurationMicros  int64
}

// FrameTimingSource is the host pipeline's per-frame timing notification.
// Subscribe registers a callback and returns its cancel func.
type FrameTimingSource interface {
	Subscribe(fn func(RawFrameTiming)) (cancel func())
}

// Collector turns raw timing samples into numbered frame metrics and emits
// them in batches of BatchSize.
type Collector struct {
	source FrameTimingSource
	sink   transport.Sink
	logger *zerolog.Logger

	// OnFrame runs for every metric as it is built; OnBatch runs for every
	// flushed batch. Both are optional and must be set before Start.
	OnFrame func(domain.FrameMetric)
	OnBatch func([]domain.FrameMetric)

	buffer      []domain.FrameMetric
	lastNumber  int
	totalFrames int64
	started     bool
	cancel      func()
	now         func() int64
}

func NewCollector(source FrameTimingSource, sink transport.Sink, logger *zerolog.Logger) *Collector {
	return &Collector{
		source: source,
		sink:   sink,
		logger: logger,
		buffer: make([]domain.FrameMetric, 0, BatchSize),
		now:    nowMicros,
	}
}

// Start subscribes to the timing source. Calling Start while already started
// is a no-op.
func (c *Collector) Start() {
	if c.started {
		return
	}
	c.started = true
	c.cancel = c.source.Subscribe(c.handleTiming)
	c.emit(transport.KindCollectorStart, transport.CollectorSignal{Timestamp: c.now()})
	c.logger.Debug().Msg("frame collector started")
}

// Stop unsubscribes and force-flushes any partial batch, so no buffered
// frame is lost. Calling Stop while already stopped is a no-op.
func (c *Collector) Stop() {
	if !c.started {
		return
	}
	c.started = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.Flush()
	total := c.totalFrames
	c.emit(transport.KindCollectorStop, transport.CollectorSignal{Timestamp: c.now(), TotalFrames: &total})
	c.logger.Debug().Int64("totalFrames", total).Msg("frame collector stopped")
}

// Reset stops the collector, drops any buffered frames, and rewinds the
// frame counter to zero.
func (c *Collector) Reset() {
	c.Stop()
	c.buffer = c.buffer[:0]
	c.lastNumber = 0
	c.totalFrames = 0
}

// Flush emits any buffered frames as one batch. Automatic flushes happen at
// BatchSize; this is the manual path used by Stop.
func (c *Collector) Flush() {
	if len(c.buffer) == 0 {
		return
	}
	batch := make([]domain.FrameMetric, len(c.buffer))
	copy(batch, c.buffer)
	c.buffer = c.buffer[:0]
	c.emit(transport.KindFrameBatch, transport.FrameBatch{
		Timestamp:  c.now(),
		FrameCount: len(batch),
		Frames:     batch,
	})
	if c.OnBatch != nil {
		c.OnBatch(batch)
	}
}

// TotalFrames is the number of frames seen since the last Reset.
func (c *Collector) TotalFrames() int64 { return c.totalFrames }

func (c *Collector) handleTiming(raw RawFrameTiming) {
	c.lastNumber++
	c.totalFrames++
	m := domain.FrameMetric{
		TimestampMicros:      raw.TimestampMicros,
		BuildDurationMicros:  raw.BuildDurationMicros,
		RasterDurationMicros: raw.RasterDurationMicros,
		TotalDurationMicros:  raw.TotalDurationMicros,
		FrameNumber:          c.lastNumber,
	}
	if c.OnFrame != nil {
		c.OnFrame(m)
	}
	c.buffer = append(c.buffer, m)
	if len(c.buffer) >= BatchSize {
		c.Flush()
	}
}

func (c *Collector) emit(kind string, payload any) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Emit(kind, payload); err != nil {
		c.logger.Warn().Err(err).Str("kind", kind).Msg("event emit failed")
	}
}

func nowMicros() int64 { return time.Now().UnixMicro() }
