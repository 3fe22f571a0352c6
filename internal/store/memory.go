package store

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no value is stored for a key, or the value has expired.
	ErrNotFound = errors.New("no value for key")
)

// record holds a stored value together with the time it was saved.
type record[V any] struct {
	Value   V
	SavedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory keyed store with retention limits.
type MemoryStore[V any] struct {
	mu sync.RWMutex

	// key: cache key, value: latest record
	data map[string]record[V]

	// retention configuration
	maxEntries int           // max number of keys kept
	maxAge     time.Duration // optional max age for records

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxEntries is <= 0, it is treated as unlimited. Same for maxAge.
func NewMemoryStore[V any](maxEntries int, maxAge time.Duration) *MemoryStore[V] {
	return &MemoryStore[V]{
		data:       make(map[string]record[V]),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save stores value under key, replacing any previous value, and enforces retention.
func (s *MemoryStore[V]) Save(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.data[key] = record[V]{Value: value, SavedAt: now}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := now.Add(-s.maxAge)
		for k, rec := range s.data {
			if rec.SavedAt.Before(cutoff) {
				delete(s.data, k)
			}
		}
	}

	// Enforce retention by count, evicting the oldest records first.
	for s.maxEntries > 0 && len(s.data) > s.maxEntries {
		var (
			oldestKey string
			oldest    time.Time
			found     bool
		)
		for k, rec := range s.data {
			if k == key {
				continue
			}
			if !found || rec.SavedAt.Before(oldest) {
				oldestKey = k
				oldest = rec.SavedAt
				found = true
			}
		}
		if !found {
			break
		}
		delete(s.data, oldestKey)
	}
}

// Get returns the value stored under key and the time it was saved.
func (s *MemoryStore[V]) Get(key string) (V, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[key]
	if !ok || s.expired(rec) {
		var zero V
		return zero, time.Time{}, ErrNotFound
	}
	return rec.Value, rec.SavedAt, nil
}

// Delete removes key from the store. Deleting a missing key is a no-op.
func (s *MemoryStore[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
}

// Keys returns all keys holding a non-expired value, in no particular order.
func (s *MemoryStore[V]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k, rec := range s.data {
		if s.expired(rec) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored records, including expired ones not yet pruned.
func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

func (s *MemoryStore[V]) expired(rec record[V]) bool {
	return s.maxAge > 0 && rec.SavedAt.Before(s.now().Add(-s.maxAge))
}
