package cache

import (
	"context"
	"image"

	"github.com/jonwraymond/inferops/frame"
)

// DefaultHitSimilarity is the similarity a lookup must reach to be served.
const DefaultHitSimilarity = 0.8

// InferFunc runs inference for a frame.
type InferFunc func(ctx context.Context, img image.Image) (*frame.Mask, float64, error)

// Outcome is the result of a cached inference.
type Outcome struct {
	Mask       *frame.Mask
	Confidence float64
	FromCache  bool
	Similarity float64
}

// Middleware wraps inference with result caching.
type Middleware struct {
	cache         Cache
	policy        Policy
	hitSimilarity float64
}

// NewMiddleware creates a new cache middleware.
// A hitSimilarity outside (0,1] falls back to DefaultHitSimilarity.
func NewMiddleware(cache Cache, policy Policy, hitSimilarity float64) *Middleware {
	if hitSimilarity <= 0 || hitSimilarity > 1 {
		hitSimilarity = DefaultHitSimilarity
	}
	return &Middleware{
		cache:         cache,
		policy:        policy,
		hitSimilarity: hitSimilarity,
	}
}

// Execute serves img from the cache when a similar enough entry exists.
// On a miss it calls infer and stores results the policy admits.
// Errors are NOT cached, and a failed write-back does not fail the call.
func (m *Middleware) Execute(ctx context.Context, img image.Image, infer InferFunc) (Outcome, error) {
	if m.cache == nil || !m.policy.ShouldCache() {
		mask, conf, err := infer(ctx, img)
		return Outcome{Mask: mask, Confidence: conf}, err
	}

	if entry, similarity := m.cache.Lookup(ctx, img); entry != nil && similarity >= m.hitSimilarity {
		return Outcome{
			Mask:       entry.Mask,
			Confidence: entry.Confidence,
			FromCache:  true,
			Similarity: similarity,
		}, nil
	}

	mask, conf, err := infer(ctx, img)
	if err != nil {
		return Outcome{}, err
	}

	if mask != nil && m.policy.Admit(conf) {
		_ = m.cache.Store(ctx, img, mask, conf)
	}

	return Outcome{Mask: mask, Confidence: conf}, nil
}
