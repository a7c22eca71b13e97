package pipeline

import (
	"time"

	"github.com/jonwraymond/inferops/frame"
	"github.com/jonwraymond/inferops/quality"
)

// State is the lifecycle position of a task.
type State int

// Enqueued and Dispatched are transient; the rest are terminal.
const (
	StateEnqueued State = iota
	StateDispatched
	StateCacheHit
	StateExecuted
	StateTimedOut
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateEnqueued:
		return "enqueued"
	case StateDispatched:
		return "dispatched"
	case StateCacheHit:
		return "cache_hit"
	case StateExecuted:
		return "executed"
	case StateTimedOut:
		return "timed_out"
	case StateDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a task's lifecycle.
func (s State) Terminal() bool {
	return s >= StateCacheHit
}

// ProcessingResult is one delivered mask.
type ProcessingResult struct {
	TaskID string
	Mask   *frame.Mask

	Confidence float64

	// ProcessingTime runs from dispatch to completion.
	ProcessingTime time.Duration

	FromCache  bool
	Resolution frame.Resolution

	// Quality is filled by the delivery loop. Issues is non-empty only when
	// the overall score is below the scorer threshold.
	Quality quality.Metrics
	Issues  []quality.Issue

	CompletedAt time.Time
}

// State returns the terminal state that produced r.
func (r ProcessingResult) State() State {
	if r.FromCache {
		return StateCacheHit
	}
	return StateExecuted
}

// Stats is a point-in-time snapshot of scheduler counters.
type Stats struct {
	QueueDepth  int
	ActiveTasks int

	// AvgProcessingTime is the smoothed executor time driving the controller.
	AvgProcessingTime time.Duration

	TotalProcessed uint64

	// TotalDropped counts admission drops plus tasks and results released
	// at shutdown.
	TotalDropped uint64

	// Undelivered counts processed results refused by a full Results channel.
	Undelivered uint64

	TimedOut  uint64
	Failed    uint64
	CacheHits uint64

	CurrentResolution frame.Resolution
	Running           bool
}

// DropRatio returns the share of admitted or attempted frames that were dropped.
func (s Stats) DropRatio() float64 {
	total := s.TotalProcessed + s.TotalDropped + s.TimedOut + s.Failed
	if total == 0 {
		return 0
	}
	return float64(s.TotalDropped) / float64(total)
}

// Handlers receives scheduler events. Nil fields are skipped. Handlers run
// on scheduler goroutines and must not block.
type Handlers struct {
	// OnProcessingCompleted receives every delivered result.
	OnProcessingCompleted func(ProcessingResult)

	// OnQueueOverflow receives the cumulative drop count on each rejection.
	OnQueueOverflow func(dropped uint64)

	// OnLowQuality receives metrics below the quality threshold and their issues.
	OnLowQuality func(quality.Metrics, []quality.Issue)

	// OnQualityAnalyzed receives every computed quality record.
	OnQualityAnalyzed func(quality.Metrics)

	// OnResolutionChanged receives each controller adjustment.
	OnResolutionChanged func(from, to frame.Resolution)
}
