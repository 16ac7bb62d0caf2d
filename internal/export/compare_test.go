package export

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Harishwarrior/jankkiller/internal/domain"
)

func sessionWith(id string, buildMicros, rasterMicros, totalMicros int64, n int) *domain.Session {
	end := int64(1000000)
	s := &domain.Session{ID: id, Route: "/list", EndTimeMicros: &end}
	for i := 0; i < n; i++ {
		s.Frames = append(s.Frames, domain.FrameMetric{
			TimestampMicros:      int64(i),
			BuildDurationMicros:  buildMicros,
			RasterDurationMicros: rasterMicros,
			TotalDurationMicros:  totalMicros,
			FrameNumber:          i + 1,
		})
	}
	return s
}

func TestCompareDeltasAreCandidateMinusBaseline(t *testing.T) {
	baseline := sessionWith("base", 10000, 6000, 16000, 10)
	candidate := sessionWith("cand", 7000, 8000, 15000, 10)

	d := Compare(baseline, candidate)
	assert.Equal(t, "base", d.Baseline.SessionID)
	assert.Equal(t, "cand", d.Candidate.SessionID)
	assert.InDelta(t, -3.0, d.AvgBuildMsDelta, 1e-9, "negative build delta means the candidate improved")
	assert.InDelta(t, 2.0, d.AvgRasterMsDelta, 1e-9)
	assert.InDelta(t, 0.0, d.JankPercentDelta, 1e-9)
}

func TestCompareJankDelta(t *testing.T) {
	// baseline has no jank at all, candidate is 100% janky
	baseline := sessionWith("base", 1000, 1000, 10000, 10)
	candidate := sessionWith("cand", 1000, 1000, 20000, 10)

	d := Compare(baseline, candidate)
	assert.InDelta(t, 100.0, d.JankPercentDelta, 1e-9)
	assert.InDelta(t, 0.0, d.Baseline.JankPercent, 1e-9)
	assert.InDelta(t, 100.0, d.Candidate.JankPercent, 1e-9)
}

func TestCompareEmptySessions(t *testing.T) {
	d := Compare(&domain.Session{ID: "a"}, &domain.Session{ID: "b"})
	assert.Zero(t, d.AvgBuildMsDelta)
	assert.Zero(t, d.JankPercentDelta)
	assert.Zero(t, d.Baseline.FrameCount)
}
