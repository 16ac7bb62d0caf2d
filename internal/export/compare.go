package export

import "github.com/Harishwarrior/jankkiller/internal/domain"

// SideStats is one side of a comparison, precomputed for the caller.
type SideStats struct {
	SessionID   string  `json:"sessionId"`
	Route       string  `json:"route"`
	AvgBuildMs  float64 `json:"avgBuildMs"`
	AvgRasterMs float64 `json:"avgRasterMs"`
	JankPercent float64 `json:"jankPercent"`
	FrameCount  int     `json:"frameCount"`
}

// Diff is a pure baseline-vs-candidate comparison. Every delta is
// candidate − baseline; negative means the candidate is better. What counts
// as "worse enough to flag" is the presentation layer's call.
type Diff struct {
	Baseline         SideStats `json:"baseline"`
	Candidate        SideStats `json:"candidate"`
	AvgBuildMsDelta  float64   `json:"avgBuildMsDelta"`
	AvgRasterMsDelta float64   `json:"avgRasterMsDelta"`
	JankPercentDelta float64   `json:"jankPercentDelta"`
}

// Compare diffs two sessions' aggregate frame statistics.
func Compare(baseline, candidate *domain.Session) Diff {
	b := sideStats(baseline)
	c := sideStats(candidate)
	return Diff{
		Baseline:         b,
		Candidate:        c,
		AvgBuildMsDelta:  c.AvgBuildMs - b.AvgBuildMs,
		AvgRasterMsDelta: c.AvgRasterMs - b.AvgRasterMs,
		JankPercentDelta: c.JankPercent - b.JankPercent,
	}
}

func sideStats(s *domain.Session) SideStats {
	st := domain.ComputeFrameStats(s.Frames)
	return SideStats{
		SessionID:   s.ID,
		Route:       s.Route,
		AvgBuildMs:  st.AvgBuildMs,
		AvgRasterMs: st.AvgRasterMs,
		JankPercent: st.JankPercent(),
		FrameCount:  st.FrameCount,
	}
}
