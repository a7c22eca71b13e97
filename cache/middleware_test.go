package cache

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/jonwraymond/inferops/frame"
)

type countingInfer struct {
	calls int
	conf  float64
	err   error
}

func (c *countingInfer) infer(_ context.Context, img image.Image) (*frame.Mask, float64, error) {
	c.calls++
	if c.err != nil {
		return nil, 0, c.err
	}
	res := frame.Of(img)
	return frame.NewUniformMask(res.Width, res.Height, 0.6), c.conf, nil
}

func TestMiddleware_MissThenHit(t *testing.T) {
	c := NewMemoryCache(DefaultPolicy())
	m := NewMiddleware(c, DefaultPolicy(), 0)
	ctx := context.Background()
	img := testImage(32, 32, 0)
	exec := &countingInfer{conf: 0.9}

	first, err := m.Execute(ctx, img, exec.infer)
	if err != nil {
		t.Fatalf("first Execute error = %v", err)
	}
	if first.FromCache {
		t.Error("first call should not come from cache")
	}

	second, err := m.Execute(ctx, img, exec.infer)
	if err != nil {
		t.Fatalf("second Execute error = %v", err)
	}
	if !second.FromCache {
		t.Error("second call should come from cache")
	}
	if second.Confidence != 0.9 {
		t.Errorf("cached confidence = %v, want 0.9", second.Confidence)
	}
	if exec.calls != 1 {
		t.Errorf("infer called %d times, want 1", exec.calls)
	}
}

func TestMiddleware_LowConfidenceNotCached(t *testing.T) {
	c := NewMemoryCache(DefaultPolicy())
	m := NewMiddleware(c, DefaultPolicy(), 0)
	ctx := context.Background()
	img := testImage(8, 8, 0)
	exec := &countingInfer{conf: 0.5}

	_, _ = m.Execute(ctx, img, exec.infer)
	_, _ = m.Execute(ctx, img, exec.infer)

	if exec.calls != 2 {
		t.Errorf("confidence at threshold should not be cached, calls = %d", exec.calls)
	}
}

func TestMiddleware_ErrorsNotCached(t *testing.T) {
	c := NewMemoryCache(DefaultPolicy())
	m := NewMiddleware(c, DefaultPolicy(), 0)
	ctx := context.Background()
	boom := errors.New("boom")
	exec := &countingInfer{conf: 0.9, err: boom}

	if _, err := m.Execute(ctx, testImage(8, 8, 0), exec.infer); !errors.Is(err, boom) {
		t.Errorf("Execute error = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Error("errors must not be cached")
	}
}

func TestMiddleware_DisabledPolicy(t *testing.T) {
	c := NewMemoryCache(DefaultPolicy())
	m := NewMiddleware(c, NoCachePolicy(), 0)
	ctx := context.Background()
	img := testImage(8, 8, 0)
	exec := &countingInfer{conf: 0.9}

	_, _ = m.Execute(ctx, img, exec.infer)
	_, _ = m.Execute(ctx, img, exec.infer)

	if exec.calls != 2 {
		t.Errorf("disabled policy should always infer, calls = %d", exec.calls)
	}
}

func TestNewMiddleware_DefaultSimilarity(t *testing.T) {
	for _, s := range []float64{0, -1, 1.5} {
		m := NewMiddleware(nil, DefaultPolicy(), s)
		if m.hitSimilarity != DefaultHitSimilarity {
			t.Errorf("hitSimilarity(%v) = %v, want default", s, m.hitSimilarity)
		}
	}
}
