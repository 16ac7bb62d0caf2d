package domain

// FrameBudgetMicros is the 60 Hz frame budget (16.67 ms). A frame whose total
// duration exceeds it is considered janky.
const FrameBudgetMicros = 16670

// FrameMetric is the timing record for one rendered frame. Immutable once
// constructed.
type FrameMetric struct {
	TimestampMicros      int64 `json:"timestampMicros"`
	BuildDurationMicros  int64 `json:"buildDurationMicros"`
	RasterDurationMicros int64 `json:"rasterDurationMicros"`
	TotalDurationMicros  int64 `json:"totalDurationMicros"`
	// FrameNumber is assigned by the collector and is monotonic for the
	// lifetime of the process, not per session.
	FrameNumber int `json:"frameNumber"`
}

func (f FrameMetric) BuildMs() float64  { return float64(f.BuildDurationMicros) / 1000 }
func (f FrameMetric) RasterMs() float64 { return float64(f.RasterDurationMicros) / 1000 }
func (f FrameMetric) TotalMs() float64  { return float64(f.TotalDurationMicros) / 1000 }

// IsJanky reports whether the frame missed the 60 Hz budget. The boundary is
// exclusive: exactly 16670 µs is still on budget.
func (f FrameMetric) IsJanky() bool { return f.TotalDurationMicros > FrameBudgetMicros }
