package executor

import (
	"context"
	"image"

	"github.com/jonwraymond/inferops/frame"
)

// Executor produces a segmentation mask for an image.
//
// Contract:
// - Context: ctx may be cancelled when the processing timeout expires.
//   Implementations may ignore it; callers abandon a late call and drop its
//   result, and nothing relies on Infer returning early.
// - Output: on success the mask matches res (or img when res is zero) and
//   confidence is within [0,1].
// - Threading: a Worker calls Infer from one OS thread only.
type Executor interface {
	Infer(ctx context.Context, img image.Image, res frame.Resolution) (*frame.Mask, float64, error)
}

// Starter is implemented by executors whose context must be initialized on
// the thread that will run inference.
type Starter interface {
	Start() error
}

// Stopper is implemented by executors holding resources released on Stop.
type Stopper interface {
	Stop()
}

// Func adapts a function to Executor.
type Func func(ctx context.Context, img image.Image, res frame.Resolution) (*frame.Mask, float64, error)

// Infer calls f.
func (f Func) Infer(ctx context.Context, img image.Image, res frame.Resolution) (*frame.Mask, float64, error) {
	return f(ctx, img, res)
}

var _ Executor = Func(nil)
