// Package cache holds extraction results and template bytes between pipeline
// runs. Entries key on document content hash so re-uploads of the same scan
// skip the expensive extraction entirely.
package cache

import (
	"sync"
	"time"

	"github.com/mids-neo/mnr-form-api/internal/extract"
)

// DefaultTTL bounds how long an extraction stays reusable.
const DefaultTTL = 30 * time.Minute

type entry struct {
	result  *extract.Result
	storedAt time.Time
}

// Store is a thread-safe TTL cache for extraction results plus a template
// byte cache. Construct one per deployment scope; there is no package-level
// singleton, so tenant-separated stores are a construction choice.
type Store struct {
	mutex     sync.RWMutex
	ttl       time.Duration
	results   map[string]entry
	templates map[string][]byte
	hits      int64
	misses    int64

	now func() time.Time // test hook
}

// NewStore creates a store with the given TTL; non-positive means DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:       ttl,
		results:   make(map[string]entry),
		templates: make(map[string][]byte),
		now:       time.Now,
	}
}

// WithClock swaps the time source, used by TTL tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func resultKey(hash string, method extract.Method) string {
	return hash + ":" + string(method)
}

// GetResult returns a cached extraction for (content hash, method) if it is
// still fresh. Expired entries are purged on access.
func (s *Store) GetResult(hash string, method extract.Method) (*extract.Result, bool) {
	key := resultKey(hash, method)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, exists := s.results[key]
	if !exists {
		s.misses++
		return nil, false
	}
	if s.now().Sub(e.storedAt) > s.ttl {
		delete(s.results, key)
		s.misses++
		return nil, false
	}

	s.hits++
	return e.result, true
}

// PutResult stores an extraction result. Failed results are not worth
// keeping; callers pass successes only, but the guard here keeps a buggy
// caller from poisoning later runs.
func (s *Store) PutResult(hash string, method extract.Method, result *extract.Result) {
	if result == nil || !result.Success {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.results[resultKey(hash, method)] = entry{result: result, storedAt: s.now()}
}

// GetTemplate returns cached template bytes by path.
func (s *Store) GetTemplate(path string) ([]byte, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	b, ok := s.templates[path]
	return b, ok
}

// PutTemplate caches template bytes by path. Templates do not expire; they
// change only on deployment.
func (s *Store) PutTemplate(path string, data []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.templates[path] = data
}

// Sweep removes every expired result entry and reports how many were removed.
func (s *Store) Sweep() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	cutoff := s.now()
	for key, e := range s.results {
		if cutoff.Sub(e.storedAt) > s.ttl {
			delete(s.results, key)
			removed++
		}
	}
	return removed
}

// Clear drops everything, counters included.
func (s *Store) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.results = make(map[string]entry)
	s.templates = make(map[string][]byte)
	s.hits = 0
	s.misses = 0
}

// Len returns the current number of cached results.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.results)
}

// Stats returns cache statistics.
func (s *Store) Stats() Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	total := s.hits + s.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(s.hits) / float64(total) * 100
	}

	return Stats{
		Hits:      s.hits,
		Misses:    s.misses,
		HitRate:   hitRate,
		Results:   len(s.results),
		Templates: len(s.templates),
	}
}

// Stats provides statistics about cache performance.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate_percent"`
	Results   int     `json:"cached_results"`
	Templates int     `json:"cached_templates"`
}
