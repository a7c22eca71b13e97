package main

import (
	"context"
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"

	"github.com/jonwraymond/inferops/frame"
	"github.com/jonwraymond/inferops/pipeline"
	"github.com/jonwraymond/inferops/queue"
)

// produce submits synthetic frames at opts.fps until ctx is done. Frames
// within one scene are identical so repeated submissions hit the cache.
func produce(ctx context.Context, sched *pipeline.Scheduler, opts options) error {
	if opts.fps <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / opts.fps))
	defer ticker.Stop()

	sceneLen := max(opts.sceneLen, 1)
	var (
		n     int
		scene image.Image
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		priority := queue.DefaultPriority
		if n%sceneLen == 0 {
			scene = syntheticScene(opts.frameSize, n/sceneLen)
			// Scene cuts survive stale eviction.
			priority = 2 * queue.HighPriorityAbove
		}
		sched.Submit(scene, priority)
		n++
	}
}

// syntheticScene draws a bright block over a dark background, moving with index.
func syntheticScene(size frame.Resolution, index int) image.Image {
	bg := imaging.New(size.Width, size.Height, color.NRGBA{R: 24, G: 24, B: 32, A: 255})
	bw, bh := max(size.Width/4, 1), max(size.Height/4, 1)
	block := imaging.New(bw, bh, color.NRGBA{R: 230, G: 220, B: 200, A: 255})

	span := max(size.Width-bw, 1)
	x := (index * bw / 2) % span
	y := (size.Height - bh) / 2
	return imaging.Paste(bg, block, image.Pt(x, y))
}
