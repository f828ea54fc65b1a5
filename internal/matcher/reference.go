package matcher

import (
	"sync"
	"time"
)

const (
	referenceTTL  = 24 * time.Hour
	sweepInterval = 10 * time.Minute
)

type refEntry struct {
	embedding []float32
	updatedAt time.Time
}

// ReferenceStore holds the normalized reference embedding for each session.
// A session has at most one reference at a time; setting a new one overwrites
// the old. Entries expire after a TTL instead of living for the whole process.
type ReferenceStore struct {
	mu      sync.RWMutex
	entries map[string]refEntry
	done    chan struct{}
	once    sync.Once
}

// NewReferenceStore creates a reference store and starts its expiry sweeper.
func NewReferenceStore() *ReferenceStore {
	s := &ReferenceStore{
		entries: make(map[string]refEntry),
		done:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Set stores the embedding for a session, overwriting any prior value.
func (s *ReferenceStore) Set(sessionID string, embedding []float32) {
	s.mu.Lock()
	s.entries[sessionID] = refEntry{embedding: embedding, updatedAt: time.Now()}
	s.mu.Unlock()
}

// Get returns the session's reference embedding, or ErrNoReference when none
// is set or the entry has expired.
func (s *ReferenceStore) Get(sessionID string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[sessionID]
	if !ok || time.Since(e.updatedAt) > referenceTTL {
		return nil, ErrNoReference
	}
	return e.embedding, nil
}

// Clear removes the session's reference.
func (s *ReferenceStore) Clear(sessionID string) {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
}

// Stop terminates the expiry sweeper.
func (s *ReferenceStore) Stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *ReferenceStore) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-referenceTTL)
			s.mu.Lock()
			for id, e := range s.entries {
				if e.updatedAt.Before(cutoff) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
