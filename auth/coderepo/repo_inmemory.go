package coderepo

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Get for a code that was never consumed
var ErrNotFound = errors.New("code not found")

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu    sync.Mutex
	codes map[string]ConsumedCode
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory consumed code repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		codes: make(map[string]ConsumedCode),
	}
}

// Consume marks a code as consumed, reporting false if it already was
func (r *InMemoryRepo) Consume(code string, consumed ConsumedCode) (bool, error) {
	if code == "" {
		return false, errors.New("code cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.codes[code]; exists {
		return false, nil
	}
	r.codes[code] = consumed
	return true, nil
}

// Get retrieves the record of a consumed code
func (r *InMemoryRepo) Get(code string) (*ConsumedCode, error) {
	if code == "" {
		return nil, errors.New("code cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	consumed, exists := r.codes[code]
	if !exists {
		return nil, ErrNotFound
	}

	// Return a copy to prevent external modifications
	return &ConsumedCode{
		ClientID:   consumed.ClientID,
		ConsumedAt: consumed.ConsumedAt,
	}, nil
}

// DeleteOlderThan removes codes consumed before cutoff
func (r *InMemoryRepo) DeleteOlderThan(cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for code, consumed := range r.codes {
		if consumed.ConsumedAt.Before(cutoff) {
			delete(r.codes, code)
		}
	}
	return nil
}
