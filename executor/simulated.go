package executor

import (
	"context"
	"image"
	"time"

	"github.com/disintegration/imaging"

	"github.com/jonwraymond/inferops/frame"
)

// referencePixels is the pixel count at which Simulated takes BaseLatency.
const referencePixels = 512 * 384

// Simulated is a stand-in backend that derives a mask from image luminance
// and sleeps in proportion to the inference resolution.
type Simulated struct {
	// BaseLatency is the delay at 512x384; larger inputs take longer.
	// Default: 0 (no delay)
	BaseLatency time.Duration

	// Confidence is the reported confidence. Default: 0 reports mean luminance.
	Confidence float64
}

// Infer implements Executor.
func (s Simulated) Infer(ctx context.Context, img image.Image, res frame.Resolution) (*frame.Mask, float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if res.IsZero() {
		res = frame.Of(img)
	}
	resized, err := frame.Resize(img, res)
	if err != nil {
		return nil, 0, err
	}

	if s.BaseLatency > 0 {
		d := time.Duration(float64(s.BaseLatency) * float64(res.Pixels()) / referencePixels)
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, 0, ctx.Err()
		}
	}

	mask, err := frame.FromImage(imaging.Grayscale(resized))
	if err != nil {
		return nil, 0, err
	}

	conf := s.Confidence
	if conf <= 0 {
		var sum float64
		for _, c := range mask.Conf {
			sum += float64(c)
		}
		conf = sum / float64(len(mask.Conf))
	}
	return mask, conf, nil
}

var _ Executor = Simulated{}
