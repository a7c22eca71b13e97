// Package executor runs inference on a single designated context.
//
// Many inference backends bind their state (a GPU context, a GL surface, a
// non-reentrant runtime) to one OS thread. A Worker owns that thread: it
// initializes the backend there, then serves every request from a single
// channel on the same thread. Callers submit requests from any goroutine and
// receive the reply on a buffered channel, so a caller that gives up waiting
// never blocks the worker.
package executor
