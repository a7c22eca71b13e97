// Package queue provides the bounded admission queue that sits between frame
// producers and the scheduler.
//
// Enqueue never blocks beyond a short critical section. When the queue is
// full it first evicts stale, ordinary priority tasks and, if that frees no
// room, rejects the new task. Every eviction and rejection counts as a drop;
// rejections additionally notify the overflow callback.
package queue
