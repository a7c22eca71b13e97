// Package pipeline schedules frames through cache, executor and quality
// scoring under a fixed concurrency bound.
//
// A Scheduler owns the admission queue, the slot bulkhead, the executor
// worker and the resolution controller. Producers call Submit or Enqueue
// from any goroutine and are never blocked. Each scheduling tick dequeues
// tasks while slots are free and dispatches them on their own goroutines:
// cache hits (similarity of at least CacheHitSimilarity) are answered
// directly; misses are resized to the current target resolution and sent
// to the single executor context with a ProcessingTimeout deadline.
// Timeouts and failures yield no result; they only move counters, metrics
// and log lines.
//
// Results are scored for quality and delivered on Results() in completion
// order. Consumers that need submission order re-sequence by TaskID.
//
// Every AdaptInterval the Controller compares the moving average of
// executor time with TargetProcessingTime and moves the resolution by one
// step: down when the average is at least 1.5x the target, up when it is
// below 0.7x the target and the ceiling has not been reached.
//
//	sched, err := pipeline.New(pipeline.DefaultConfig(), executor.Simulated{},
//	    pipeline.WithCache(results),
//	    pipeline.WithHandlers(pipeline.Handlers{
//	        OnQueueOverflow: func(dropped uint64) { log.Printf("dropped %d", dropped) },
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := sched.Start(ctx); err != nil {
//	    return err // executor context failed to start
//	}
//	defer sched.Shutdown(context.Background())
//
//	sched.Submit(frame, queue.DefaultPriority)
//	for r := range sched.Results() {
//	    render(r.Mask)
//	}
package pipeline
