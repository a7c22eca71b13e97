// Package health reports the readiness of the inference core.
//
// A Checker reports one component's Status: Healthy, Degraded or Unhealthy.
// The Aggregator runs a set of checkers under one deadline and folds their
// results into an overall status, which the HTTP handlers expose as liveness,
// readiness and detailed JSON endpoints.
//
// Components publish their own checkers: the pipeline scheduler reports
// whether it is running and whether frames are being lost, the result cache
// reports memory pressure, and MemoryChecker watches the process heap.
//
//	agg := health.NewAggregator()
//	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
//	agg.Register("pipeline", sched.HealthChecker())
//	agg.Register("cache", results.HealthChecker())
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
package health
