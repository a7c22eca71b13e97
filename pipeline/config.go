package pipeline

import (
	"fmt"
	"time"

	"github.com/jonwraymond/inferops/frame"
)

// Config configures a Scheduler.
type Config struct {
	// MaxConcurrentTasks bounds in-flight dispatches.
	// Default: 2 (range 1..4)
	MaxConcurrentTasks int

	// InputQueueSize bounds the admission queue.
	// Default: 10 (range 5..20)
	InputQueueSize int

	// ProcessingTimeout is the per-task executor deadline.
	// Default: 5s
	ProcessingTimeout time.Duration

	// TargetProcessingTime is the controller setpoint.
	// Default: 33ms
	TargetProcessingTime time.Duration

	// PollInterval is the scheduling loop cadence.
	// Default: 16ms
	PollInterval time.Duration

	// AdaptInterval is the controller cadence.
	// Default: 2s
	AdaptInterval time.Duration

	// DynamicQuality enables the resolution controller.
	// Default: true
	DynamicQuality bool

	// InitialResolution is the starting inference resolution.
	// Default: 512x384
	InitialResolution frame.Resolution

	// MinResolution is the controller floor.
	// Default: 256x192
	MinResolution frame.Resolution

	// MaxResolution is the controller ceiling.
	// Default: 640x480
	MaxResolution frame.Resolution

	// ShrinkStep is subtracted when the pipeline runs slow.
	// Default: 64x48
	ShrinkStep frame.Resolution

	// GrowStep is added when the pipeline has headroom.
	// Default: 32x24
	GrowStep frame.Resolution

	// Smoothing is the moving average factor for processing time.
	// Default: 0.1
	Smoothing float64

	// CacheHitSimilarity is the similarity a cache entry needs to be served.
	// Default: 0.8
	CacheHitSimilarity float64

	// CacheMinConfidence is the confidence a result must exceed to be cached.
	// Default: 0.5
	CacheMinConfidence float64

	// ResultBuffer is the capacity of the Results channel.
	// Default: 64
	ResultBuffer int
}

// Controller thresholds relative to TargetProcessingTime.
const (
	ShrinkAbove = 1.5
	GrowBelow   = 0.7
)

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks:   2,
		InputQueueSize:       10,
		ProcessingTimeout:    5 * time.Second,
		TargetProcessingTime: 33 * time.Millisecond,
		PollInterval:         16 * time.Millisecond,
		AdaptInterval:        2 * time.Second,
		DynamicQuality:       true,
		InitialResolution:    frame.Resolution{Width: 512, Height: 384},
		MinResolution:        frame.Resolution{Width: 256, Height: 192},
		MaxResolution:        frame.Resolution{Width: 640, Height: 480},
		ShrinkStep:           frame.Resolution{Width: 64, Height: 48},
		GrowStep:             frame.Resolution{Width: 32, Height: 24},
		Smoothing:            0.1,
		CacheHitSimilarity:   0.8,
		CacheMinConfidence:   0.5,
		ResultBuffer:         64,
	}
}

// Validate checks ranges and the ordering of the resolution bounds.
func (c Config) Validate() error {
	switch {
	case c.MaxConcurrentTasks < 1 || c.MaxConcurrentTasks > 4:
		return fmt.Errorf("%w: max concurrent tasks %d not in [1,4]", ErrInvalidConfig, c.MaxConcurrentTasks)
	case c.InputQueueSize < 5 || c.InputQueueSize > 20:
		return fmt.Errorf("%w: input queue size %d not in [5,20]", ErrInvalidConfig, c.InputQueueSize)
	case c.ProcessingTimeout <= 0:
		return fmt.Errorf("%w: processing timeout must be positive", ErrInvalidConfig)
	case c.TargetProcessingTime <= 0:
		return fmt.Errorf("%w: target processing time must be positive", ErrInvalidConfig)
	case c.PollInterval <= 0 || c.AdaptInterval <= 0:
		return fmt.Errorf("%w: loop intervals must be positive", ErrInvalidConfig)
	case c.Smoothing <= 0 || c.Smoothing > 1:
		return fmt.Errorf("%w: smoothing %v not in (0,1]", ErrInvalidConfig, c.Smoothing)
	case c.CacheHitSimilarity < 0 || c.CacheHitSimilarity > 1:
		return fmt.Errorf("%w: cache hit similarity %v not in [0,1]", ErrInvalidConfig, c.CacheHitSimilarity)
	case c.CacheMinConfidence < 0 || c.CacheMinConfidence > 1:
		return fmt.Errorf("%w: cache min confidence %v not in [0,1]", ErrInvalidConfig, c.CacheMinConfidence)
	case c.ResultBuffer < 1:
		return fmt.Errorf("%w: result buffer must be positive", ErrInvalidConfig)
	}

	if c.MinResolution.IsZero() || c.MinResolution.Width > c.MaxResolution.Width || c.MinResolution.Height > c.MaxResolution.Height {
		return fmt.Errorf("%w: resolution bounds %s..%s", ErrInvalidConfig, c.MinResolution, c.MaxResolution)
	}
	if !within(c.InitialResolution, c.MinResolution, c.MaxResolution) {
		return fmt.Errorf("%w: initial resolution %s outside %s..%s", ErrInvalidConfig, c.InitialResolution, c.MinResolution, c.MaxResolution)
	}
	if c.ShrinkStep.Width <= 0 || c.ShrinkStep.Height <= 0 || c.GrowStep.Width <= 0 || c.GrowStep.Height <= 0 {
		return fmt.Errorf("%w: resolution steps must be positive", ErrInvalidConfig)
	}
	return nil
}

func within(r, lo, hi frame.Resolution) bool {
	return r.Width >= lo.Width && r.Height >= lo.Height && r.Width <= hi.Width && r.Height <= hi.Height
}
