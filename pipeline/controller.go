package pipeline

import (
	"sync"
	"time"

	"github.com/jonwraymond/inferops/frame"
)

// Adjustment is the outcome of one controller tick.
type Adjustment int

const (
	AdjustNone Adjustment = iota
	AdjustShrink
	AdjustGrow
)

func (a Adjustment) String() string {
	switch a {
	case AdjustShrink:
		return "shrink"
	case AdjustGrow:
		return "grow"
	default:
		return "none"
	}
}

// Controller holds processing time near a target by stepping the inference
// resolution. Observe may be called from any goroutine; Adapt is called by
// the scheduling loop once per AdaptInterval.
type Controller struct {
	target    float64
	smoothing float64
	min, max  frame.Resolution
	shrink    frame.Resolution
	grow      frame.Resolution

	mu         sync.Mutex
	ema        float64 // nanoseconds
	samples    int
	resolution frame.Resolution
}

// NewController creates a controller from the resolution fields of cfg.
func NewController(cfg Config) *Controller {
	return &Controller{
		target:     float64(cfg.TargetProcessingTime),
		smoothing:  cfg.Smoothing,
		min:        cfg.MinResolution,
		max:        cfg.MaxResolution,
		shrink:     cfg.ShrinkStep,
		grow:       cfg.GrowStep,
		resolution: cfg.InitialResolution,
	}
}

// Observe folds one executor duration into the moving average. The first
// sample seeds the average.
func (c *Controller) Observe(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.samples == 0 {
		c.ema = float64(d)
	} else {
		c.ema += c.smoothing * (float64(d) - c.ema)
	}
	c.samples++
}

// Average returns the moving average, or zero before the first sample.
func (c *Controller) Average() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.ema)
}

// Resolution returns the current target resolution.
func (c *Controller) Resolution() frame.Resolution {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolution
}

// Adapt makes at most one step and returns the resulting resolution.
// Without samples it does nothing.
func (c *Controller) Adapt() (frame.Resolution, Adjustment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.samples == 0 {
		return c.resolution, AdjustNone
	}

	r := c.resolution
	switch {
	case c.ema >= ShrinkAbove*c.target:
		next := frame.Resolution{
			Width:  max(r.Width-c.shrink.Width, c.min.Width),
			Height: max(r.Height-c.shrink.Height, c.min.Height),
		}
		if next == r {
			return r, AdjustNone
		}
		c.resolution = next
		return next, AdjustShrink

	case c.ema < GrowBelow*c.target && r.Width < c.max.Width:
		c.resolution = frame.Resolution{
			Width:  min(r.Width+c.grow.Width, c.max.Width),
			Height: min(r.Height+c.grow.Height, c.max.Height),
		}
		return c.resolution, AdjustGrow
	}
	return r, AdjustNone
}
