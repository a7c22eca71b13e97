package queue

import (
	"sync"
	"time"

	"github.com/jonwraymond/inferops/clock"
)

// DefaultMaxAge is the age past which an ordinary task may be evicted to make room.
const DefaultMaxAge = 2 * time.Second

// Option configures an AdmissionQueue.
type Option func(*AdmissionQueue)

// WithClock sets the clock used for task ages.
func WithClock(c clock.Clock) Option {
	return func(q *AdmissionQueue) {
		q.clock = clock.OrReal(c)
	}
}

// WithMaxAge sets the stale eviction age. Default: DefaultMaxAge
func WithMaxAge(d time.Duration) Option {
	return func(q *AdmissionQueue) {
		if d > 0 {
			q.maxAge = d
		}
	}
}

// WithOverflowHandler sets the callback invoked with the cumulative drop
// count each time a task is rejected. It runs on the producer goroutine with
// no lock held.
func WithOverflowHandler(fn func(dropped uint64)) Option {
	return func(q *AdmissionQueue) {
		q.onOverflow = fn
	}
}

// WithEvictHandler sets the callback invoked with the number of stale tasks
// removed by an eviction pass. It runs on the producer goroutine with no lock
// held, before any overflow callback for the same Enqueue.
func WithEvictHandler(fn func(evicted int)) Option {
	return func(q *AdmissionQueue) {
		q.onEvict = fn
	}
}

// AdmissionQueue is a bounded FIFO of tasks.
//
// Contract:
// - Concurrency: safe for concurrent producers and consumers.
// - Bound: Len never exceeds the capacity.
// - Ordering: Dequeue returns tasks in admission order.
type AdmissionQueue struct {
	clock      clock.Clock
	maxAge     time.Duration
	onOverflow func(uint64)
	onEvict    func(int)

	mu      sync.Mutex
	buf     []Task
	head    int
	n       int
	dropped uint64
	closed  bool
}

// New creates a queue holding at most capacity tasks.
func New(capacity int, opts ...Option) (*AdmissionQueue, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	q := &AdmissionQueue{
		clock:  clock.Real{},
		maxAge: DefaultMaxAge,
		buf:    make([]Task, capacity),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Enqueue admits t and reports whether it was accepted.
// An empty ID is filled in and EnqueuedAt is always stamped.
func (q *AdmissionQueue) Enqueue(t Task) bool {
	if t.ID == "" {
		t.ID = NewID()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	now := q.clock.Now()
	evicted := 0
	if q.n == len(q.buf) {
		evicted = q.evictStaleLocked(now)
	}
	if q.n == len(q.buf) {
		q.dropped++
		dropped := q.dropped
		q.mu.Unlock()
		q.notifyEvicted(evicted)
		if q.onOverflow != nil {
			q.onOverflow(dropped)
		}
		return false
	}

	t.EnqueuedAt = now
	q.buf[(q.head+q.n)%len(q.buf)] = t
	q.n++
	q.mu.Unlock()
	q.notifyEvicted(evicted)
	return true
}

func (q *AdmissionQueue) notifyEvicted(n int) {
	if n > 0 && q.onEvict != nil {
		q.onEvict(n)
	}
}

// evictStaleLocked compacts the ring, removing ordinary tasks older than
// maxAge, and returns how many it removed.
func (q *AdmissionQueue) evictStaleLocked(now time.Time) int {
	kept := 0
	for i := 0; i < q.n; i++ {
		t := q.buf[(q.head+i)%len(q.buf)]
		if !t.HighPriority() && now.Sub(t.EnqueuedAt) > q.maxAge {
			q.dropped++
			continue
		}
		q.buf[(q.head+kept)%len(q.buf)] = t
		kept++
	}
	for i := kept; i < q.n; i++ {
		q.buf[(q.head+i)%len(q.buf)] = Task{}
	}
	evicted := q.n - kept
	q.n = kept
	return evicted
}

// Dequeue removes and returns the oldest task.
func (q *AdmissionQueue) Dequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.n == 0 {
		return Task{}, false
	}
	t := q.buf[q.head]
	q.buf[q.head] = Task{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return t, true
}

// Drain removes and returns every queued task, oldest first.
func (q *AdmissionQueue) Drain() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Task, 0, q.n)
	for q.n > 0 {
		out = append(out, q.buf[q.head])
		q.buf[q.head] = Task{}
		q.head = (q.head + 1) % len(q.buf)
		q.n--
	}
	return out
}

// Len returns the number of queued tasks.
func (q *AdmissionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Cap returns the queue capacity.
func (q *AdmissionQueue) Cap() int {
	return len(q.buf)
}

// Dropped returns the cumulative number of evicted and rejected tasks.
func (q *AdmissionQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops admission. Later Enqueue calls return false without counting
// a drop. Queued tasks remain available to Dequeue and Drain.
func (q *AdmissionQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Closed reports whether Close has been called.
func (q *AdmissionQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
