package sessions

import (
	"sync"

	"github.com/pkg/errors"
)

// Slot holds the live session of one flow. Reset tears the current session down
// and mounts a fresh one.
type Slot struct {
	mu      sync.Mutex
	factory func() (*Session, error)
	current *Session
}

// NewSlot creates a slot and mounts its first session
func NewSlot(factory func() (*Session, error)) (*Slot, error) {
	if factory == nil {
		return nil, errors.New("[NewSlot] session factory is required")
	}
	s := &Slot{factory: factory}
	if _, err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the live session
func (s *Slot) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reset closes the live session and replaces it with a new one
func (s *Slot) Reset() (*Session, error) {
	next, err := s.factory()
	if err != nil {
		return nil, errors.Wrap(err, "[Slot.Reset] creating session")
	}

	s.mu.Lock()
	prev := s.current
	s.current = next
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return next, nil
}

// Close tears down the live session
func (s *Slot) Close() {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur != nil {
		cur.Close()
	}
}
