package pipeline

import (
	"context"
	"fmt"

	"github.com/jonwraymond/inferops/health"
	"github.com/jonwraymond/inferops/resilience"
)

// maxHealthyDropRatio is the drop share above which the scheduler reports degraded.
const maxHealthyDropRatio = 0.2

// HealthChecker reports scheduler liveness. A stopped scheduler is
// unhealthy. An open executor circuit, a saturated admission queue or a drop
// ratio above 20% is degraded.
func (s *Scheduler) HealthChecker() health.Checker {
	return health.NewCheckerFunc("pipeline", func(ctx context.Context) health.Result {
		st := s.Stats()
		details := map[string]any{
			"queue_depth":        st.QueueDepth,
			"active_tasks":       st.ActiveTasks,
			"processed":          st.TotalProcessed,
			"dropped":            st.TotalDropped,
			"timed_out":          st.TimedOut,
			"failed":             st.Failed,
			"cache_hits":         st.CacheHits,
			"drop_ratio":         st.DropRatio(),
			"avg_processing_ms":  float64(st.AvgProcessingTime.Microseconds()) / 1000,
			"current_resolution": st.CurrentResolution.String(),
		}
		circuit := resilience.StateClosed
		if s.breaker != nil {
			circuit = s.breaker.State()
		}
		details["circuit"] = circuit.String()

		if !st.Running {
			return health.Unhealthy("scheduler not running", ErrShutdown).WithDetails(details)
		}
		switch {
		case circuit == resilience.StateOpen:
			return health.Degraded("executor circuit open").WithDetails(details)
		case st.QueueDepth >= s.queue.Cap():
			return health.Degraded(fmt.Sprintf("admission queue saturated (%d)", st.QueueDepth)).WithDetails(details)
		case st.DropRatio() > maxHealthyDropRatio:
			return health.Degraded(fmt.Sprintf("dropping %.0f%% of frames", st.DropRatio()*100)).WithDetails(details)
		}
		return health.Healthy(fmt.Sprintf("%d processed at %s", st.TotalProcessed, st.CurrentResolution)).WithDetails(details)
	})
}
