package health

import (
	"context"
	"fmt"
	"runtime"
)

// MemoryCheckerConfig configures the heap checker.
//
// Frames and cached masks dominate the heap of an inference process, so the
// thresholds are fractions of MaxAlloc rather than of host memory.
type MemoryCheckerConfig struct {
	// WarningThreshold is the heap fraction reported as degraded.
	// Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the heap fraction reported as unhealthy.
	// Default: 0.95
	CriticalThreshold float64

	// MaxAlloc is the heap budget in bytes. Zero uses the memory obtained
	// from the OS (runtime.MemStats.Sys).
	MaxAlloc uint64
}

// MemoryChecker checks heap usage against a budget.
type MemoryChecker struct {
	config MemoryCheckerConfig
	read   func(*runtime.MemStats)
}

// NewMemoryChecker creates a heap checker. Out of range thresholds fall back
// to the defaults.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = min(config.WarningThreshold+0.1, 0.99)
	}
	return &MemoryChecker{config: config, read: runtime.ReadMemStats}
}

// Name returns the name of this checker.
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check compares the live heap with the budget.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var stats runtime.MemStats
	m.read(&stats)

	budget := m.config.MaxAlloc
	if budget == 0 {
		budget = stats.Sys
	}
	details := map[string]any{
		"heap_alloc_bytes": stats.HeapAlloc,
		"heap_objects":     stats.HeapObjects,
		"budget_bytes":     budget,
		"num_gc":           stats.NumGC,
		"goroutines":       runtime.NumGoroutine(),
	}
	if budget == 0 {
		return Healthy("memory stats unavailable").WithDetails(details)
	}

	ratio := float64(stats.HeapAlloc) / float64(budget)
	details["usage_percent"] = ratio * 100

	switch Level(ratio, m.config.WarningThreshold, m.config.CriticalThreshold) {
	case StatusUnhealthy:
		return Unhealthy(fmt.Sprintf("heap usage critical: %.1f%%", ratio*100), ErrCheckFailed).WithDetails(details)
	case StatusDegraded:
		return Degraded(fmt.Sprintf("heap usage high: %.1f%%", ratio*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("heap usage normal: %.1f%%", ratio*100)).WithDetails(details)
	}
}

var _ Checker = (*MemoryChecker)(nil)
