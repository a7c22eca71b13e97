package health

import (
	"context"
	"time"
)

// Status orders component health from best to worst, so the larger of two
// statuses is the more severe.
type Status int

const (
	// StatusHealthy means the component serves frames within its limits.
	StatusHealthy Status = iota
	// StatusDegraded means the component works but is losing frames or
	// running close to a limit.
	StatusDegraded
	// StatusUnhealthy means the component cannot serve frames.
	StatusUnhealthy
)

var statusNames = [...]string{
	StatusHealthy:   "healthy",
	StatusDegraded:  "degraded",
	StatusUnhealthy: "unhealthy",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText encodes s by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Worse returns the more severe of a and b.
func Worse(a, b Status) Status {
	return max(a, b)
}

// Level classifies value against warning and critical thresholds.
// Values at or above critical are unhealthy, at or above warning degraded.
func Level(value, warning, critical float64) Status {
	switch {
	case value >= critical:
		return StatusUnhealthy
	case value >= warning:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Result is one checker's verdict.
type Result struct {
	Status  Status
	Message string

	// Details carries component counters for the detailed endpoint.
	Details map[string]any

	// Duration and Timestamp are filled in by the Aggregator.
	Duration  time.Duration
	Timestamp time.Time

	// Error is set for unhealthy results.
	Error error
}

func newResult(s Status, message string, err error) Result {
	return Result{Status: s, Message: message, Error: err, Timestamp: time.Now()}
}

// Healthy creates a healthy result.
func Healthy(message string) Result { return newResult(StatusHealthy, message, nil) }

// Degraded creates a degraded result.
func Degraded(message string) Result { return newResult(StatusDegraded, message, nil) }

// Unhealthy creates an unhealthy result caused by err.
func Unhealthy(message string, err error) Result { return newResult(StatusUnhealthy, message, err) }

// WithDetails returns r carrying details.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDuration returns r with its duration set.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// Checker reports the health of one component.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Check must return promptly once ctx is done.
// - Errors: failures are reported in the Result, never by panicking.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// NewCheckerFunc returns a Checker called name that runs fn.
func NewCheckerFunc(name string, fn func(context.Context) Result) Checker {
	return funcChecker{name: name, fn: fn}
}

type funcChecker struct {
	name string
	fn   func(context.Context) Result
}

func (f funcChecker) Name() string                     { return f.name }
func (f funcChecker) Check(ctx context.Context) Result { return f.fn(ctx) }
