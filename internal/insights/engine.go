// Package insights is the rule-based detector for known rendering
// anti-patterns. Analysis is a pure function over a completed session; every
// detector is independent and several can fire for the same session.
package insights

import (
	"fmt"
	"strings"

	"github.com/Harishwarrior/jankkiller/internal/domain"
)

// Insight type tags. Machine-stable: external tooling keys on them.
const (
	TypeExcessiveJank   = "excessive_jank"
	TypeHighBuildTime   = "high_build_time"
	TypeHighRasterTime  = "high_raster_time"
	TypeBuildStorm      = "build_storm"
	TypeSaveLayer       = "save_layer"
	TypeShaderJank      = "shader_compilation"
	TypeIntrinsicLayout = "intrinsic_layout"
)

// Detection thresholds. Fixed by contract; tests pin the boundaries.
const (
	jankWarningPercent   = 10.0
	jankCriticalPercent  = 20.0
	phaseWarningMs       = 8.0
	phaseCriticalMs      = 12.0
	stormMinFrames       = 10
	stormBuildMultiplier = 3.0
	stormSharePercent    = 10.0
	saveLayerCriticalAt  = 5
)

// Timeline markers the event-name detectors match on. The saveLayer markers
// are matched case-sensitively; "intrinsic" is matched case-insensitively.
var (
	saveLayerMarkers = []string{
		"Canvas::saveLayer",
		"ui.Canvas::saveLayer (Recorded)",
	}
	shaderMarker    = "GrGLProgramBuilder"
	intrinsicMarker = "intrinsic"
)

// Analyze inspects a completed session and returns every insight whose
// detector fires. Active sessions and sessions with zero frames return nil:
// there is not enough data to say anything.
func Analyze(s *domain.Session) []domain.Insight {
	if s == nil || s.Active() || len(s.Frames) == 0 {
		return nil
	}
	stats := domain.ComputeFrameStats(s.Frames)
	var out []domain.Insight
	if in, ok := detectExcessiveJank(stats); ok {
		out = append(out, in)
	}
	if in, ok := detectHighBuildTime(stats); ok {
		out = append(out, in)
	}
	if in, ok := detectHighRasterTime(stats); ok {
		out = append(out, in)
	}
	if in, ok := detectBuildStorm(s.Frames, stats); ok {
		out = append(out, in)
	}
	if in, ok := detectSaveLayer(s.TimelineEvents); ok {
		out = append(out, in)
	}
	if in, ok := detectShaderJank(s.TimelineEvents); ok {
		out = append(out, in)
	}
	if in, ok := detectIntrinsicLayout(s.TimelineEvents); ok {
		out = append(out, in)
	}
	return out
}

func detectExcessiveJank(stats domain.FrameStats) (domain.Insight, bool) {
	pct := stats.JankPercent()
	if pct < jankWarningPercent {
		return domain.Insight{}, false
	}
	sev := domain.SeverityWarning
	if pct >= jankCriticalPercent {
		sev = domain.SeverityCritical
	}
	return domain.Insight{
		Type:  TypeExcessiveJank,
		Title: "Excessive jank",
		Description: fmt.Sprintf("%.1f%% of frames (%d of %d) missed the 16.67 ms budget.",
			pct, stats.JankyCount, stats.FrameCount),
		Suggestions: []string{
			"Profile the janky frames to see whether build or raster is the bottleneck",
			"Move expensive work out of build methods and off the UI thread",
			"Use RepaintBoundary to isolate frequently repainting subtrees",
		},
		Severity: sev,
		Metadata: map[string]float64{
			"jankPercent": pct,
			"jankyFrames": float64(stats.JankyCount),
			"totalFrames": float64(stats.FrameCount),
		},
	}, true
}

func detectHighBuildTime(stats domain.FrameStats) (domain.Insight, bool) {
	if stats.AvgBuildMs <= phaseWarningMs {
		return domain.Insight{}, false
	}
	sev := domain.SeverityWarning
	if stats.AvgBuildMs > phaseCriticalMs {
		sev = domain.SeverityCritical
	}
	return domain.Insight{
		Type:  TypeHighBuildTime,
		Title: "High build time",
		Description: fmt.Sprintf("Average build phase is %.1f ms, above the %.0f ms half-budget.",
			stats.AvgBuildMs, phaseWarningMs),
		Suggestions: []string{
			"Split large widgets so rebuilds touch less of the tree",
			"Cache subtrees with const constructors where possible",
			"Avoid doing I/O or heavy computation inside build()",
		},
		Severity: sev,
		Metadata: map[string]float64{"avgBuildMs": stats.AvgBuildMs},
	}, true
}

func detectHighRasterTime(stats domain.FrameStats) (domain.Insight, bool) {
	if stats.AvgRasterMs <= phaseWarningMs {
		return domain.Insight{}, false
	}
	sev := domain.SeverityWarning
	if stats.AvgRasterMs > phaseCriticalMs {
		sev = domain.SeverityCritical
	}
	return domain.Insight{
		Type:  TypeHighRasterTime,
		Title: "High raster time",
		Description: fmt.Sprintf("Average raster phase is %.1f ms, above the %.0f ms half-budget.",
			stats.AvgRasterMs, phaseWarningMs),
		Suggestions: []string{
			"Reduce overdraw: fewer stacked opacities, clips and blurs",
			"Pre-size and cache images at their display resolution",
			"Check for saveLayer calls forced by Opacity and ShaderMask widgets",
		},
		Severity: sev,
		Metadata: map[string]float64{"avgRasterMs": stats.AvgRasterMs},
	}, true
}

func detectBuildStorm(frames []domain.FrameMetric, stats domain.FrameStats) (domain.Insight, bool) {
	if len(frames) < stormMinFrames {
		return domain.Insight{}, false
	}
	threshold := stats.AvgBuildMs * stormBuildMultiplier
	storm := 0
	for _, f := range frames {
		if f.BuildMs() > threshold {
			storm++
		}
	}
	if float64(storm) <= float64(len(frames))*stormSharePercent/100 {
		return domain.Insight{}, false
	}
	return domain.Insight{
		Type:  TypeBuildStorm,
		Title: "Build storm",
		Description: fmt.Sprintf("%d frames spent over 3× the average build time (%.1f ms).",
			storm, stats.AvgBuildMs),
		Suggestions: []string{
			"Look for setState calls that cascade into wide rebuilds",
			"Debounce rapid state changes feeding animated widgets",
		},
		Severity: domain.SeverityWarning,
		Metadata: map[string]float64{
			"stormFrames": float64(storm),
			"avgBuildMs":  stats.AvgBuildMs,
		},
	}, true
}

func detectSaveLayer(events []domain.TimelineEvent) (domain.Insight, bool) {
	matches := 0
	for _, ev := range events {
		name := ev.Name()
		for _, marker := range saveLayerMarkers {
			if strings.Contains(name, marker) {
				matches++
				break
			}
		}
	}
	if matches == 0 {
		return domain.Insight{}, false
	}
	sev := domain.SeverityWarning
	if matches > saveLayerCriticalAt {
		sev = domain.SeverityCritical
	}
	return domain.Insight{
		Type:  TypeSaveLayer,
		Title: "saveLayer usage",
		Description: fmt.Sprintf("%d saveLayer calls recorded; each one forces an offscreen render pass.",
			matches),
		Suggestions: []string{
			"Replace Opacity over a single child with color-level opacity",
			"Prefer FadeTransition or AnimatedOpacity over rebuilt Opacity widgets",
			"Clip with clipBehavior: Clip.hardEdge where antialiasing is not needed",
		},
		Severity: sev,
		Metadata: map[string]float64{"saveLayerCount": float64(matches)},
	}, true
}

func detectShaderJank(events []domain.TimelineEvent) (domain.Insight, bool) {
	matches := 0
	for _, ev := range events {
		if strings.Contains(ev.Name(), shaderMarker) {
			matches++
		}
	}
	if matches == 0 {
		return domain.Insight{}, false
	}
	return domain.Insight{
		Type:  TypeShaderJank,
		Title: "Shader compilation jank",
		Description: fmt.Sprintf("%d shader compilation events occurred during this session.",
			matches),
		Suggestions: []string{
			"Warm up shaders with SkSL precompilation (--bundle-sksl-path)",
			"Trigger the affected animations once during app startup",
		},
		Severity: domain.SeverityWarning,
		Metadata: map[string]float64{"shaderCompileCount": float64(matches)},
	}, true
}

func detectIntrinsicLayout(events []domain.TimelineEvent) (domain.Insight, bool) {
	matches := 0
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Name()), intrinsicMarker) {
			matches++
		}
	}
	if matches == 0 {
		return domain.Insight{}, false
	}
	return domain.Insight{
		Type:  TypeIntrinsicLayout,
		Title: "Intrinsic layout passes",
		Description: fmt.Sprintf("%d intrinsic sizing passes recorded; intrinsics lay the subtree out twice.",
			matches),
		Suggestions: []string{
			"Replace IntrinsicHeight/IntrinsicWidth with fixed or flex sizing",
			"Give table-like layouts explicit column widths",
		},
		Severity: domain.SeverityWarning,
		Metadata: map[string]float64{"intrinsicCount": float64(matches)},
	}, true
}
