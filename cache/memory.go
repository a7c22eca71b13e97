package cache

import (
	"context"
	"hash/maphash"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/inferops/clock"
	"github.com/jonwraymond/inferops/frame"
)

const shardCount = 16

// MemoryCache is an in-memory, sharded Cache.
type MemoryCache struct {
	policy Policy
	keyer  Keyer
	clock  clock.Clock
	seed   maphash.Seed
	shards [shardCount]shard

	bytes       atomic.Int64
	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64

	// evictMu serializes capacity enforcement; shard locks are taken one at a time under it.
	evictMu sync.Mutex
}

type shard struct {
	mu      sync.Mutex
	entries map[frame.Key]*Entry
}

// Option configures a MemoryCache.
type Option func(*MemoryCache)

// WithClock sets the clock used for timestamps and expiry.
func WithClock(c clock.Clock) Option {
	return func(m *MemoryCache) {
		m.clock = clock.OrReal(c)
	}
}

// WithKeyer sets the key derivation. Default: FingerprintKeyer.
func WithKeyer(k Keyer) Option {
	return func(m *MemoryCache) {
		if k != nil {
			m.keyer = k
		}
	}
}

// NewMemoryCache creates a new in-memory cache with the given policy.
func NewMemoryCache(policy Policy, opts ...Option) *MemoryCache {
	m := &MemoryCache{
		policy: policy,
		keyer:  FingerprintKeyer{},
		clock:  clock.Real{},
		seed:   maphash.MakeSeed(),
	}
	for i := range m.shards {
		m.shards[i].entries = make(map[frame.Key]*Entry)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the cache policy.
func (m *MemoryCache) Policy() Policy {
	return m.policy
}

func (m *MemoryCache) shardFor(key frame.Key) *shard {
	return &m.shards[maphash.String(m.seed, string(key))%shardCount]
}

// Lookup returns the entry for img with similarity 1.0, or (nil, 0) on miss,
// expiry or unusable input. Expired entries are removed lazily.
func (m *MemoryCache) Lookup(_ context.Context, img image.Image) (*Entry, float64) {
	key, err := m.keyer.Key(img)
	if err != nil {
		m.misses.Add(1)
		return nil, 0
	}

	now := m.clock.Now()
	s := m.shardFor(key)

	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		m.misses.Add(1)
		return nil, 0
	}
	if entry.Expired(now, m.policy.Lifetime) {
		delete(s.entries, key)
		s.mu.Unlock()
		m.release(entry)
		m.expirations.Add(1)
		m.misses.Add(1)
		return nil, 0
	}
	entry.LastAccessAt = now
	entry.AccessCount++
	snapshot := *entry
	s.mu.Unlock()

	m.hits.Add(1)
	return &snapshot, ExactMatch
}

// Store caches a deep copy of mask and a snapshot of img.
// A disabled policy makes Store a no-op.
func (m *MemoryCache) Store(_ context.Context, img image.Image, mask *frame.Mask, confidence float64) error {
	if !m.policy.ShouldCache() {
		return nil
	}
	if mask == nil {
		return ErrNilMask
	}
	if confidence < 0 || confidence > 1 {
		return ErrInvalidConfidence
	}
	key, err := m.keyer.Key(img)
	if err != nil {
		return err
	}

	// Copies happen outside any lock.
	input := frame.Snapshot(img)
	owned := mask.Clone()
	now := m.clock.Now()

	entry := &Entry{
		Key:          key,
		Input:        input,
		Mask:         owned,
		Confidence:   confidence,
		Resolution:   frame.Of(img),
		CreatedAt:    now,
		LastAccessAt: now,
		AccessCount:  1,
	}

	s := m.shardFor(key)
	s.mu.Lock()
	old, replaced := s.entries[key]
	s.entries[key] = entry
	s.mu.Unlock()

	if replaced {
		m.release(old)
	}
	m.bytes.Add(entryBytes(entry))

	m.enforceCapacity()
	return nil
}

// Sweep removes every entry with now - CreatedAt > Lifetime.
func (m *MemoryCache) Sweep(now time.Time) int {
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		var expired []*Entry

		s.mu.Lock()
		for key, entry := range s.entries {
			if entry.Expired(now, m.policy.Lifetime) {
				delete(s.entries, key)
				expired = append(expired, entry)
			}
		}
		s.mu.Unlock()

		for _, entry := range expired {
			m.release(entry)
		}
		removed += len(expired)
	}
	m.expirations.Add(uint64(removed))
	return removed
}

// Clear removes all entries immediately.
func (m *MemoryCache) Clear() {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		old := s.entries
		s.entries = make(map[frame.Key]*Entry)
		s.mu.Unlock()

		for _, entry := range old {
			m.release(entry)
		}
	}
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *MemoryCache) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Stats returns a snapshot of cache counters.
func (m *MemoryCache) Stats() Stats {
	return Stats{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		Evictions:   m.evictions.Load(),
		Expirations: m.expirations.Load(),
		Entries:     m.Len(),
		Bytes:       m.bytes.Load(),
	}
}

// enforceCapacity evicts least recently accessed entries until the byte budget holds.
func (m *MemoryCache) enforceCapacity() {
	if m.policy.MaxBytes <= 0 || m.bytes.Load() <= m.policy.MaxBytes {
		return
	}

	m.evictMu.Lock()
	defer m.evictMu.Unlock()

	for m.bytes.Load() > m.policy.MaxBytes {
		victim, ok := m.oldestAccessed()
		if !ok {
			return
		}
		s := m.shardFor(victim.Key)
		s.mu.Lock()
		current, present := s.entries[victim.Key]
		if present && current == victim {
			delete(s.entries, victim.Key)
		}
		s.mu.Unlock()

		if present && current == victim {
			m.release(victim)
			m.evictions.Add(1)
		}
	}
}

func (m *MemoryCache) oldestAccessed() (*Entry, bool) {
	var oldest *Entry
	var oldestAt time.Time
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for _, entry := range s.entries {
			if oldest == nil || entry.LastAccessAt.Before(oldestAt) {
				oldest = entry
				oldestAt = entry.LastAccessAt
			}
		}
		s.mu.Unlock()
	}
	return oldest, oldest != nil
}

// release drops the entry's buffers from the byte budget. The garbage
// collector reclaims them once readers holding a snapshot let go.
func (m *MemoryCache) release(e *Entry) {
	m.bytes.Add(-entryBytes(e))
}

func entryBytes(e *Entry) int64 {
	n := e.Mask.Bytes()
	if e.Input != nil {
		n += int64(cap(e.Input.Pix))
	}
	return n
}

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)
