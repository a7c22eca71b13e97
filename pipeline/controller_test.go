package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/inferops/frame"
)

func res(w, h int) frame.Resolution {
	return frame.Resolution{Width: w, Height: h}
}

func TestController_NoSamples(t *testing.T) {
	c := NewController(DefaultConfig())

	got, adj := c.Adapt()
	if adj != AdjustNone || got != res(512, 384) {
		t.Errorf("Adapt() = %v, %v; want 512x384, none", got, adj)
	}
	if c.Average() != 0 {
		t.Errorf("Average() = %v, want 0", c.Average())
	}
}

// TestController_ShrinksToFloor verifies an average of exactly 1.5x target shrinks.
func TestController_ShrinksToFloor(t *testing.T) {
	cfg := DefaultConfig()
	c := NewController(cfg)
	c.Observe(cfg.TargetProcessingTime * 3 / 2)

	want := []frame.Resolution{res(448, 336), res(384, 288), res(320, 240), res(256, 192)}
	for i, w := range want {
		got, adj := c.Adapt()
		if adj != AdjustShrink || got != w {
			t.Fatalf("step %d: Adapt() = %v, %v; want %v, shrink", i, got, adj, w)
		}
	}

	got, adj := c.Adapt()
	if adj != AdjustNone || got != cfg.MinResolution {
		t.Errorf("at floor: Adapt() = %v, %v; want %v, none", got, adj, cfg.MinResolution)
	}
}

func TestController_GrowsToCeiling(t *testing.T) {
	cfg := DefaultConfig()
	c := NewController(cfg)
	c.Observe(cfg.TargetProcessingTime / 2)

	want := []frame.Resolution{res(544, 408), res(576, 432), res(608, 456), res(640, 480)}
	for i, w := range want {
		got, adj := c.Adapt()
		if adj != AdjustGrow || got != w {
			t.Fatalf("step %d: Adapt() = %v, %v; want %v, grow", i, got, adj, w)
		}
	}

	if _, adj := c.Adapt(); adj != AdjustNone {
		t.Errorf("at ceiling: Adapt() adjustment = %v, want none", adj)
	}
}

func TestController_HoldsInBand(t *testing.T) {
	cfg := DefaultConfig()
	c := NewController(cfg)
	c.Observe(cfg.TargetProcessingTime)

	if got, adj := c.Adapt(); adj != AdjustNone || got != cfg.InitialResolution {
		t.Errorf("Adapt() = %v, %v; want unchanged", got, adj)
	}
}

func TestController_ClampsPartialStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialResolution = res(280, 210)
	c := NewController(cfg)
	c.Observe(time.Second)

	if got, _ := c.Adapt(); got != cfg.MinResolution {
		t.Errorf("Adapt() = %v, want clamp to %v", got, cfg.MinResolution)
	}
}

func TestController_MovingAverage(t *testing.T) {
	cfg := DefaultConfig()
	c := NewController(cfg)

	c.Observe(10 * time.Millisecond)
	if c.Average() != 10*time.Millisecond {
		t.Errorf("first sample: Average() = %v, want 10ms", c.Average())
	}

	c.Observe(20 * time.Millisecond)
	diff := c.Average() - 11*time.Millisecond
	if diff < -time.Microsecond || diff > time.Microsecond {
		t.Errorf("Average() = %v, want ~11ms", c.Average())
	}
}

func TestController_ConcurrentObserve(t *testing.T) {
	c := NewController(DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Observe(5 * time.Millisecond)
				c.Adapt()
			}
		}()
	}
	wg.Wait()

	if c.Average() != 5*time.Millisecond {
		t.Errorf("Average() = %v, want 5ms", c.Average())
	}
}

func TestAdjustment_String(t *testing.T) {
	for adj, want := range map[Adjustment]string{AdjustNone: "none", AdjustShrink: "shrink", AdjustGrow: "grow"} {
		if adj.String() != want {
			t.Errorf("%d.String() = %q, want %q", adj, adj.String(), want)
		}
	}
}
