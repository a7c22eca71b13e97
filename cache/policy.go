package cache

import "time"

// Policy configures caching behavior.
type Policy struct {
	// Lifetime is how long an entry may be served after it is stored.
	// If zero, caching is disabled.
	Lifetime time.Duration

	// MaxBytes bounds the memory held by live entries.
	// If zero, only the lifetime bounds the cache.
	MaxBytes int64

	// SweepInterval is how often a Janitor removes expired entries.
	SweepInterval time.Duration

	// MinConfidence is the confidence a result must exceed to be stored.
	MinConfidence float64
}

// DefaultPolicy returns the default caching policy.
// Lifetime: 60s, MaxBytes: 50MB, SweepInterval: 10s, MinConfidence: 0.5
func DefaultPolicy() Policy {
	return Policy{
		Lifetime:      60 * time.Second,
		MaxBytes:      50 << 20,
		SweepInterval: 10 * time.Second,
		MinConfidence: 0.5,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.Lifetime > 0
}

// Admit reports whether a result with the given confidence should be stored.
func (p Policy) Admit(confidence float64) bool {
	return p.ShouldCache() && confidence > p.MinConfidence
}
