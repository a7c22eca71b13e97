package cache

import (
	"context"
	"fmt"

	"github.com/jonwraymond/inferops/health"
)

// Fill fractions of Policy.MaxBytes reported by the health checker.
const (
	fillWarning  = 0.9
	fillCritical = 1.01
)

// HealthChecker reports memory pressure: degraded once live entries hold 90%
// of MaxBytes. Capacity eviction keeps the cache at or below the bound, so an
// unbounded or disabled cache is always healthy.
func (m *MemoryCache) HealthChecker() health.Checker {
	return health.NewCheckerFunc("cache", func(ctx context.Context) health.Result {
		stats := m.Stats()
		details := map[string]any{
			"entries":     stats.Entries,
			"bytes":       stats.Bytes,
			"hits":        stats.Hits,
			"misses":      stats.Misses,
			"hit_ratio":   stats.HitRatio(),
			"evictions":   stats.Evictions,
			"expirations": stats.Expirations,
		}
		if !m.policy.ShouldCache() {
			return health.Healthy("caching disabled").WithDetails(details)
		}
		if m.policy.MaxBytes <= 0 {
			return health.Healthy(fmt.Sprintf("%d entries", stats.Entries)).WithDetails(details)
		}

		fill := float64(stats.Bytes) / float64(m.policy.MaxBytes)
		details["fill_percent"] = fill * 100
		msg := fmt.Sprintf("%d entries, %.1f%% of capacity", stats.Entries, fill*100)
		switch health.Level(fill, fillWarning, fillCritical) {
		case health.StatusHealthy:
			return health.Healthy(msg).WithDetails(details)
		case health.StatusDegraded:
			return health.Degraded(msg).WithDetails(details)
		default:
			return health.Unhealthy(msg, health.ErrCheckFailed).WithDetails(details)
		}
	})
}
