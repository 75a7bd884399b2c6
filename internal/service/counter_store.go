package service

import "sync"

// CounterStore is the storage behind the circuit breaker counters. The
// interface keeps the backend swappable (in-memory here, Redis later)
// while giving the breaker atomic read-modify-write semantics.
type CounterStore interface {
	// Get returns the current value of a counter (0 if unset)
	Get(key string) float64

	// Add atomically adds delta to a counter and returns the new value
	Add(key string, delta float64) float64

	// Reset clears a counter
	Reset(key string)
}

// MemoryCounterStore is the in-process CounterStore implementation
type MemoryCounterStore struct {
	mu     sync.Mutex
	values map[string]float64
}

// NewMemoryCounterStore creates an empty in-memory counter store
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{values: make(map[string]float64)}
}

// Get returns the current value of a counter
func (s *MemoryCounterStore) Get(key string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Add atomically adds delta to a counter and returns the new value
func (s *MemoryCounterStore) Add(key string, delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] += delta
	return s.values[key]
}

// Reset clears a counter
func (s *MemoryCounterStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}
