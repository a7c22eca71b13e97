package quality

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/inferops/clock"
	"github.com/jonwraymond/inferops/frame"
	"github.com/jonwraymond/inferops/observe"
)

const (
	// averageSmoothing is the EMA factor of Stats.AverageQuality.
	averageSmoothing = 0.1

	// slowAnalysis is the duration past which an analysis is logged.
	slowAnalysis = 5 * time.Millisecond
)

// Option configures a Scorer.
type Option func(*Scorer)

// WithClock sets the clock used for rate limiting and timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Scorer) {
		s.clock = clock.OrReal(c)
	}
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l observe.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// OnAnalyzed registers a hook invoked for every computed record.
func OnAnalyzed(fn func(Metrics)) Option {
	return func(s *Scorer) {
		s.onAnalyzed = fn
	}
}

// OnLowQuality registers a hook invoked when a record falls below
// Config.MinQualityThreshold.
func OnLowQuality(fn func(Metrics, []Issue)) Option {
	return func(s *Scorer) {
		s.onLowQuality = fn
	}
}

// Scorer computes quality metrics for masks and keeps the recent history
// needed for consistency and stability.
//
// Hooks are invoked synchronously from Score with the scorer lock released.
type Scorer struct {
	cfg    Config
	clock  clock.Clock
	logger observe.Logger

	onAnalyzed   func(Metrics)
	onLowQuality func(Metrics, []Issue)

	mu             sync.Mutex
	history        *history
	last           Metrics
	lastUnforced   time.Time // zero until the first unforced analysis
	averageQuality float64
	totalAnalyzed  int
	rejected       int
}

// NewScorer creates a Scorer. The configuration is validated only when
// analysis is enabled.
func NewScorer(cfg Config, opts ...Option) (*Scorer, error) {
	if cfg.Enabled {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	window := cfg.WindowSize
	if window <= 0 {
		window = DefaultConfig().WindowSize
	}

	s := &Scorer{
		cfg:     cfg,
		clock:   clock.Real{},
		logger:  observe.NopLogger(),
		history: newHistory(window),
		last:    DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the scorer configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score analyzes mask and returns its metrics.
//
// A disabled scorer or an empty mask yields DefaultMetrics. Unless forced, a
// call within Config.RateLimit of the previous unforced analysis returns the
// latest record unchanged. Forced calls never move that window.
func (s *Scorer) Score(mask *frame.Mask, forced bool) Metrics {
	if !s.cfg.Enabled || mask.Empty() || mask.Validate() != nil {
		return DefaultMetrics()
	}

	s.mu.Lock()
	now := s.clock.Now()
	if !forced {
		if !s.lastUnforced.IsZero() && now.Sub(s.lastUnforced) < s.cfg.RateLimit {
			m := s.last
			s.mu.Unlock()
			return m
		}
		s.lastUnforced = now
	}

	start := time.Now()
	m := s.analyze(mask, now)
	elapsed := time.Since(start)

	s.history.push(m)
	s.last = m
	s.totalAnalyzed++
	s.averageQuality += (m.OverallQuality - s.averageQuality) * averageSmoothing

	acceptable := m.Acceptable(s.cfg.MinQualityThreshold)
	if !acceptable {
		s.rejected++
	}
	s.mu.Unlock()

	if elapsed > slowAnalysis {
		s.logger.Warn(context.Background(), "slow quality analysis",
			observe.Field{Key: "duration_ms", Value: float64(elapsed.Microseconds()) / 1000},
			observe.Field{Key: "resolution", Value: m.Resolution.String()},
		)
	}

	if !acceptable && s.onLowQuality != nil {
		s.onLowQuality(m, IdentifyIssues(m))
	}
	if s.onAnalyzed != nil {
		s.onAnalyzed(m)
	}
	return m
}

// analyze computes a fresh record. Callers hold s.mu.
func (s *Scorer) analyze(mask *frame.Mask, now time.Time) Metrics {
	m := Metrics{
		Resolution: mask.Resolution(),
		Timestamp:  now,
	}

	coverage(mask, &m)

	if s.cfg.EdgeAnalysis {
		m.EdgeSharpness = edgeSharpness(mask, s.cfg.EdgeThreshold)
	} else {
		m.EdgeSharpness = neutralEdge
	}

	m.Noise = noise(mask)

	if s.cfg.ConsistencyTracking {
		m.Consistency = consistency(m, s.history.last(consistencyLookback), s.cfg.MaxConsistencyDeviation)
	} else {
		m.Consistency = neutralConsistency
	}

	m.Stability = stability(s.history, s.cfg.WindowSize)
	m.OverallQuality = overall(m, s.cfg)
	return m
}

// Last returns the most recent record, or DefaultMetrics before any analysis.
func (s *Scorer) Last() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// History returns the retained records, oldest first.
func (s *Scorer) History() []Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.last(s.history.len())
}

// Stats returns a snapshot of scorer activity.
func (s *Scorer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		AverageQuality: s.averageQuality,
		TotalAnalyzed:  s.totalAnalyzed,
		Rejected:       s.rejected,
	}
	if s.totalAnalyzed > 0 {
		st.AcceptanceRate = float64(s.totalAnalyzed-s.rejected) / float64(s.totalAnalyzed)
	}

	records := s.history.last(s.history.len())
	if len(records) > 0 {
		var sum float64
		for _, m := range records {
			sum += m.OverallQuality
		}
		st.RecentAverageQuality = sum / float64(len(records))
	}
	if newest, ok := s.history.newest(); ok {
		st.CurrentStability = newest.Stability
	}
	return st
}

// Reset clears history and counters.
func (s *Scorer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = newHistory(len(s.history.buf))
	s.last = DefaultMetrics()
	s.lastUnforced = time.Time{}
	s.averageQuality = 0
	s.totalAnalyzed = 0
	s.rejected = 0
}
