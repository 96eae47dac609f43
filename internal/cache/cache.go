// Package cache implements the time-boxed key/value cache sitting between
// the store layer and its backends, plus the read-through helper and the
// typed write→read invalidation registry both backends share.
//
// Entries share one fixed TTL and expire lazily on the next read; nothing
// sweeps the map in the background and nothing bounds its size. The working
// set is one chat's daily data, so unbounded is acceptable. Last-access
// times are tracked for reporting only, never for eviction.
package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the cache validity window. It is deliberately short so that
// manual edits made directly in the spreadsheet surface quickly.
const DefaultTTL = 10 * time.Second

// Hooks receive cache activity notifications, typically to feed metrics
// counters. Nil funcs are skipped.
type Hooks struct {
	OnHit        func()
	OnMiss       func()
	OnInvalidate func(n int)
}

type entry struct {
	created time.Time
	value   any
}

// Manager is a TTL key/value cache with hit/miss/invalidation accounting.
type Manager struct {
	mu            sync.Mutex
	ttl           time.Duration
	entries       map[string]entry
	lastAccess    map[string]time.Time
	hits          int64
	misses        int64
	invalidations int64
	now           func() time.Time
	hooks         Hooks
}

// Option configures a Manager.
type Option func(*Manager)

// WithHooks installs activity hooks.
func WithHooks(h Hooks) Option {
	return func(m *Manager) { m.hooks = h }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager with the given TTL; ttl <= 0 falls back to DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		ttl:        ttl,
		entries:    make(map[string]entry),
		lastAccess: make(map[string]time.Time),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key builds a deterministic cache key from an operation namespace and its
// arguments: "namespace:arg1,arg2".
func Key(namespace string, args ...any) string {
	if len(args) == 0 {
		return namespace
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return namespace + ":" + strings.Join(parts, ",")
}

// Get returns the cached value for key and whether a live entry was found.
// An expired entry is evicted on the spot and counts as a miss.
func (m *Manager) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.lastAccess[key] = now

	if e, ok := m.entries[key]; ok {
		if now.Sub(e.created) < m.ttl {
			m.hits++
			if m.hooks.OnHit != nil {
				m.hooks.OnHit()
			}
			return e.value, true
		}
		delete(m.entries, key)
		m.invalidations++
		if m.hooks.OnInvalidate != nil {
			m.hooks.OnInvalidate(1)
		}
	}

	m.misses++
	if m.hooks.OnMiss != nil {
		m.hooks.OnMiss()
	}
	return nil, false
}

// Set stores value under key with the current timestamp.
func (m *Manager) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{created: m.now(), value: value}
}

// Invalidate removes a single key, if present.
func (m *Manager) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		delete(m.entries, key)
		m.invalidations++
		if m.hooks.OnInvalidate != nil {
			m.hooks.OnInvalidate(1)
		}
	}
}

// InvalidateAll clears every entry.
func (m *Manager) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[string]entry)
	m.invalidations += int64(n)
	if n > 0 && m.hooks.OnInvalidate != nil {
		m.hooks.OnInvalidate(n)
	}
}

// InvalidatePattern removes every key containing the given substring.
func (m *Manager) InvalidatePattern(pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.entries {
		if strings.Contains(k, pattern) {
			delete(m.entries, k)
			n++
		}
	}
	m.invalidations += int64(n)
	if n > 0 && m.hooks.OnInvalidate != nil {
		m.hooks.OnInvalidate(n)
	}
}

// Stats is a point-in-time report of cache usage.
type Stats struct {
	Size              int
	Hits              int64
	Misses            int64
	HitRate           float64
	Invalidations     int64
	AvgAge            time.Duration
	OldestKeys        []string
	LeastRecentlyUsed []string
}

// Stats reports size, hit/miss counts, hit rate, total invalidations,
// average entry age, and the five oldest / least recently used keys.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Size:          len(m.entries),
		Hits:          m.hits,
		Misses:        m.misses,
		Invalidations: m.invalidations,
	}
	if total := m.hits + m.misses; total > 0 {
		s.HitRate = float64(m.hits) / float64(total)
	}

	now := m.now()
	type keyed struct {
		key string
		at  time.Time
	}
	byCreation := make([]keyed, 0, len(m.entries))
	var totalAge time.Duration
	for k, e := range m.entries {
		byCreation = append(byCreation, keyed{k, e.created})
		totalAge += now.Sub(e.created)
	}
	if len(byCreation) > 0 {
		s.AvgAge = totalAge / time.Duration(len(byCreation))
	}
	sort.Slice(byCreation, func(i, j int) bool { return byCreation[i].at.Before(byCreation[j].at) })
	for i := 0; i < len(byCreation) && i < 5; i++ {
		s.OldestKeys = append(s.OldestKeys, byCreation[i].key)
	}

	byAccess := make([]keyed, 0, len(m.entries))
	for k := range m.entries {
		if at, ok := m.lastAccess[k]; ok {
			byAccess = append(byAccess, keyed{k, at})
		}
	}
	sort.Slice(byAccess, func(i, j int) bool { return byAccess[i].at.Before(byAccess[j].at) })
	for i := 0; i < len(byAccess) && i < 5; i++ {
		s.LeastRecentlyUsed = append(s.LeastRecentlyUsed, byAccess[i].key)
	}

	return s
}
