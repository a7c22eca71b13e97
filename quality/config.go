package quality

import (
	"fmt"
	"time"
)

// Fixed sub-score weights. Stability uses Config.StabilityWeight and the
// confidence variance fills whatever remains.
const (
	WeightCoverage    = 0.30
	WeightEdge        = 0.20
	WeightNoise       = 0.20
	WeightConsistency = 0.15
)

// Config configures a Scorer.
type Config struct {
	// Enabled turns analysis on. When false Score returns DefaultMetrics.
	Enabled bool

	// WindowSize is the number of records kept for consistency and stability.
	// Default: 20
	WindowSize int

	// MinQualityThreshold is the overall score below which a mask is flagged.
	// Default: 0.3
	MinQualityThreshold float64

	// StabilityWeight is the weight of the stability sub-score.
	// Default: 0.15
	StabilityWeight float64

	// EdgeAnalysis enables the gradient pass. Default: true
	EdgeAnalysis bool

	// EdgeThreshold is the gradient magnitude that counts as an edge.
	// Default: 0.1
	EdgeThreshold float64

	// ConsistencyTracking enables comparison against recent history. Default: true
	ConsistencyTracking bool

	// MaxConsistencyDeviation is the mean sub-score drift tolerated per comparison.
	// Default: 0.15
	MaxConsistencyDeviation float64

	// RateLimit is the minimum spacing between unforced analyses.
	// Default: 100ms
	RateLimit time.Duration
}

// DefaultConfig returns the default scorer configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		WindowSize:              20,
		MinQualityThreshold:     0.3,
		StabilityWeight:         0.15,
		EdgeAnalysis:            true,
		EdgeThreshold:           0.1,
		ConsistencyTracking:     true,
		MaxConsistencyDeviation: 0.15,
		RateLimit:               100 * time.Millisecond,
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return ErrInvalidWindow
	}
	if c.MinQualityThreshold < 0 || c.MinQualityThreshold > 1 {
		return fmt.Errorf("%w: min quality %v", ErrInvalidThreshold, c.MinQualityThreshold)
	}
	if c.EdgeThreshold < 0 || c.EdgeThreshold > 1 {
		return fmt.Errorf("%w: edge %v", ErrInvalidThreshold, c.EdgeThreshold)
	}
	if c.MaxConsistencyDeviation < 0 || c.MaxConsistencyDeviation > 1 {
		return fmt.Errorf("%w: consistency deviation %v", ErrInvalidThreshold, c.MaxConsistencyDeviation)
	}
	if c.StabilityWeight < 0 || c.StabilityWeight > 1 {
		return ErrInvalidWeight
	}
	if WeightCoverage+WeightEdge+WeightNoise+WeightConsistency+c.StabilityWeight > 1+1e-9 {
		return fmt.Errorf("%w: weights sum past 1", ErrInvalidWeight)
	}
	return nil
}
