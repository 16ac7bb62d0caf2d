package domain

import "sort"

// FrameStats is the aggregate view over a session's frame metrics. It is
// derived on demand, never stored.
type FrameStats struct {
	FrameCount  int     `json:"frameCount"`
	JankyCount  int     `json:"jankyCount"`
	AvgBuildMs  float64 `json:"avgBuildMs"`
	P90BuildMs  float64 `json:"p90BuildMs"`
	P99BuildMs  float64 `json:"p99BuildMs"`
	AvgRasterMs float64 `json:"avgRasterMs"`
	P90RasterMs float64 `json:"p90RasterMs"`
	P99RasterMs float64 `json:"p99RasterMs"`
}

// JankPercent is janky frames over total, as a percentage. 0 for an empty set.
func (s FrameStats) JankPercent() float64 {
	if s.FrameCount == 0 {
		return 0
	}
	return float64(s.JankyCount) / float64(s.FrameCount) * 100
}

// ComputeFrameStats aggregates a frame list. Percentiles use the nearest-rank
// estimator at index floor(n×p) of the ascending sort, clamped to the valid
// range. Regression comparisons depend on this exact formula; do not swap it
// for linear interpolation.
func ComputeFrameStats(frames []FrameMetric) FrameStats {
	st := FrameStats{FrameCount: len(frames)}
	if len(frames) == 0 {
		return st
	}
	build := make([]float64, 0, len(frames))
	raster := make([]float64, 0, len(frames))
	var buildSum, rasterSum float64
	for _, f := range frames {
		b, r := f.BuildMs(), f.RasterMs()
		build = append(build, b)
		raster = append(raster, r)
		buildSum += b
		rasterSum += r
		if f.IsJanky() {
			st.JankyCount++
		}
	}
	sort.Float64s(build)
	sort.Float64s(raster)
	n := float64(len(frames))
	st.AvgBuildMs = buildSum / n
	st.AvgRasterMs = rasterSum / n
	st.P90BuildMs = percentile(build, 0.90)
	st.P99BuildMs = percentile(build, 0.99)
	st.P90RasterMs = percentile(raster, 0.90)
	st.P99RasterMs = percentile(raster, 0.99)
	return st
}

func percentile(sorted []float64, p float64) float64 {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}
