package sweep

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current trim table.
type Store struct {
	table atomic.Pointer[Table]
	mu    sync.Mutex // serializes sweep operations
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current table, or nil if none has been computed.
func (s *Store) Get() *Table {
	return s.table.Load()
}

// Set atomically replaces the current table.
func (s *Store) Set(t *Table) {
	s.table.Store(t)
}

// AgeSeconds returns the age of the current table in seconds.
// Returns -1 if no table is loaded.
func (s *Store) AgeSeconds() float64 {
	t := s.table.Load()
	if t == nil {
		return -1
	}
	return time.Since(t.GeneratedAt).Seconds()
}

// Lock acquires the sweep mutex for serializing sweep operations.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the sweep mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}
