// Package web provides the HTTP servers for the one-time authorization flow
// and the listening-history dashboard.
package web

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

const stateTTL = 10 * time.Minute

// StateStore issues and consumes single-use OAuth state values. Each login
// attempt gets its own expiring state, so concurrent attempts cannot clobber
// each other.
type StateStore struct {
	mu     sync.Mutex
	states map[string]time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewStateStore creates an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Issue generates a new random state and registers it.
func (s *StateStore) Issue() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.states[state] = s.now().Add(stateTTL)
	return state, nil
}

// Consume reports whether the state was issued and not yet used or expired,
// removing it either way.
func (s *StateStore) Consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.states[state]
	delete(s.states, state)
	return ok && s.now().Before(expiry)
}

// prune drops expired states; caller holds the lock.
func (s *StateStore) prune() {
	now := s.now()
	for state, expiry := range s.states {
		if !now.Before(expiry) {
			delete(s.states, state)
		}
	}
}
