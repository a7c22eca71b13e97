package cache

import (
	"context"
	"image"
	"time"

	"github.com/jonwraymond/inferops/frame"
)

// ExactMatch is the similarity reported for a fingerprint hit.
const ExactMatch = 1.0

// Entry is a cached inference result.
//
// Input and Mask are owned by the cache and must not be mutated.
type Entry struct {
	Key          frame.Key
	Input        *image.NRGBA
	Mask         *frame.Mask
	Confidence   float64
	Resolution   frame.Resolution
	CreatedAt    time.Time
	LastAccessAt time.Time
	AccessCount  int
}

// Expired reports whether e is older than lifetime at now.
func (e *Entry) Expired(now time.Time, lifetime time.Duration) bool {
	return now.Sub(e.CreatedAt) > lifetime
}

// Cache stores inference results keyed by frame content.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Lookup never errors; it returns (nil, 0) on miss or bad input.
// - Ownership: Store copies its inputs; returned entries are read-only.
// - Expiry: entries older than the lifetime are never returned.
type Cache interface {
	// Lookup returns the entry for img and its similarity (1.0 on hit).
	Lookup(ctx context.Context, img image.Image) (*Entry, float64)

	// Store caches mask and confidence for img, replacing any existing entry.
	Store(ctx context.Context, img image.Image, mask *frame.Mask, confidence float64) error

	// Sweep removes entries that are expired at now and returns the count.
	Sweep(now time.Time) int

	// Clear removes all entries.
	Clear()

	// Stats returns a snapshot of cache counters.
	Stats() Stats
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	Entries     int
	Bytes       int64
}

// HitRatio returns Hits / (Hits + Misses), or 0 without traffic.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
