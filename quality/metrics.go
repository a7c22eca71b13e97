package quality

import (
	"strings"
	"time"

	"github.com/jonwraymond/inferops/frame"
)

// Metrics is the quality record computed for one mask.
// Every score is in [0,1]; for Noise lower is better.
type Metrics struct {
	OverallQuality     float64
	Coverage           float64
	EdgeSharpness      float64
	Noise              float64
	Consistency        float64
	Stability          float64
	ConfidenceVariance float64
	SignificantPixels  int
	Resolution         frame.Resolution
	Timestamp          time.Time
}

// Acceptable reports whether the overall score reaches threshold.
func (m Metrics) Acceptable(threshold float64) bool {
	return m.OverallQuality >= threshold
}

// DefaultMetrics is the neutral record returned when analysis is disabled or
// the mask is unusable.
func DefaultMetrics() Metrics {
	return Metrics{
		OverallQuality:     0.5,
		EdgeSharpness:      0.5,
		Consistency:        0.8,
		Stability:          0.7,
		Coverage:           0.5,
		Noise:              0.3,
		ConfidenceVariance: 0.7,
	}
}

// Issue names a reason a mask scored poorly.
type Issue string

// Issue tags.
const (
	IssueLowCoverage  Issue = "low coverage"
	IssueBlurryEdges  Issue = "blurry edges"
	IssueHighNoise    Issue = "high noise"
	IssueInconsistent Issue = "inconsistent"
	IssueUnstable     Issue = "unstable"
	IssueGeneral      Issue = "general low quality"
)

// Issue thresholds.
const (
	lowCoverageBelow  = 0.2
	blurryEdgesBelow  = 0.3
	highNoiseAbove    = 0.7
	inconsistentBelow = 0.5
	unstableBelow     = 0.4
)

// IdentifyIssues lists the sub-scores of m that breach their thresholds.
// It never returns an empty list: with no specific cause it returns IssueGeneral.
func IdentifyIssues(m Metrics) []Issue {
	var issues []Issue
	if m.Coverage < lowCoverageBelow {
		issues = append(issues, IssueLowCoverage)
	}
	if m.EdgeSharpness < blurryEdgesBelow {
		issues = append(issues, IssueBlurryEdges)
	}
	if m.Noise > highNoiseAbove {
		issues = append(issues, IssueHighNoise)
	}
	if m.Consistency < inconsistentBelow {
		issues = append(issues, IssueInconsistent)
	}
	if m.Stability < unstableBelow {
		issues = append(issues, IssueUnstable)
	}
	if len(issues) == 0 {
		issues = append(issues, IssueGeneral)
	}
	return issues
}

// JoinIssues renders issues as a comma separated list.
func JoinIssues(issues []Issue) string {
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = string(issue)
	}
	return strings.Join(parts, ", ")
}

// Stats summarizes scorer activity.
type Stats struct {
	AverageQuality       float64
	RecentAverageQuality float64
	TotalAnalyzed        int
	Rejected             int
	AcceptanceRate       float64
	CurrentStability     float64
}
