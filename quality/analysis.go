package quality

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/jonwraymond/inferops/frame"
)

const (
	// significanceThreshold is the confidence above which a pixel counts as covered.
	significanceThreshold = 0.1

	// noiseSampleStride is the pixel stride of the noise sample.
	noiseSampleStride = 10

	// consistencyLookback is how many recent records consistency compares against.
	consistencyLookback = 5

	// consistencyPenalty is subtracted for every comparison that drifts too far.
	consistencyPenalty = 0.2

	// Neutral sub-scores used when a measurement has too little to go on.
	neutralEdge        = 0.7
	neutralConsistency = 0.8
	neutralStability   = 0.8
)

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// coverage fills Coverage, SignificantPixels and ConfidenceVariance.
func coverage(m *frame.Mask, out *Metrics) {
	n := len(m.Conf)
	significant := 0
	var total, sumSquares float64

	for _, c := range m.Conf {
		v := float64(c)
		if v > significanceThreshold {
			significant++
			total += v
		}
		sumSquares += v * v
	}

	out.SignificantPixels = significant
	out.Coverage = clamp01(float64(significant) / float64(n) * 2)

	mean := total / float64(n)
	variance := sumSquares/float64(n) - mean*mean
	out.ConfidenceVariance = clamp01(1 - variance)
}

// edgeSharpness runs a 3x3 Sobel pass and returns the share of edges that are sharp.
func edgeSharpness(m *frame.Mask, threshold float64) float64 {
	sharp, total := 0, 0
	at := func(x, y int) float64 { return float64(m.At(x, y)) }

	for y := 1; y < m.Height-1; y++ {
		for x := 1; x < m.Width-1; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)

			magnitude := math.Sqrt(gx*gx + gy*gy)
			if magnitude > threshold {
				total++
				if magnitude > 2*threshold {
					sharp++
				}
			}
		}
	}

	if total == 0 {
		return 0
	}
	return float64(sharp) / float64(total)
}

// noise averages the right and below differences over a strided sample.
func noise(m *frame.Mask) float64 {
	n := len(m.Conf)
	var level float64
	samples := 0

	for i := 0; i < n; i += noiseSampleStride {
		if i+1 >= n || i+m.Width >= n {
			continue
		}
		c := float64(m.Conf[i])
		level += math.Abs(c-float64(m.Conf[i+1])) + math.Abs(c-float64(m.Conf[i+m.Width]))
		samples++
	}

	if samples == 0 {
		return 0
	}
	return clamp01(level / float64(samples))
}

// consistency penalizes drift against the most recent records.
func consistency(current Metrics, recent []Metrics, maxDeviation float64) float64 {
	if len(recent) == 0 {
		return neutralConsistency
	}
	score := 1.0
	for _, prev := range recent {
		diff := (math.Abs(current.Coverage-prev.Coverage) +
			math.Abs(current.EdgeSharpness-prev.EdgeSharpness) +
			math.Abs(current.Noise-prev.Noise)) / 3
		if diff > maxDeviation {
			score -= consistencyPenalty
		}
	}
	return clamp01(score)
}

// stability maps the spread of recent overall scores to [0,1].
func stability(h *history, windowSize int) float64 {
	if h.len() < 3 {
		return neutralStability
	}
	recent := h.last(windowSize / 4)
	if len(recent) < 2 {
		return neutralStability
	}
	scores := make([]float64, len(recent))
	for i, m := range recent {
		scores[i] = m.OverallQuality
	}
	_, std := stat.PopMeanStdDev(scores, nil)
	return clamp01(1 - 2*std)
}

// overall folds the sub-scores into one value.
func overall(m Metrics, cfg Config) float64 {
	var sum, weight float64

	sum += clamp01(m.Coverage) * WeightCoverage
	weight += WeightCoverage

	if cfg.EdgeAnalysis {
		sum += clamp01(m.EdgeSharpness) * WeightEdge
		weight += WeightEdge
	}

	sum += (1 - clamp01(m.Noise)) * WeightNoise
	weight += WeightNoise

	if cfg.ConsistencyTracking {
		sum += clamp01(m.Consistency) * WeightConsistency
		weight += WeightConsistency
	}

	sum += clamp01(m.Stability) * cfg.StabilityWeight
	weight += cfg.StabilityWeight

	if remaining := 1 - weight; remaining > 0 {
		sum += clamp01(m.ConfidenceVariance) * remaining
	}

	return clamp01(sum)
}
