package coderepo

import "time"

// ConsumedCode records an authorization code that has already been sent to the token endpoint
type ConsumedCode struct {
	ClientID   string
	ConsumedAt time.Time
}

// Repo tracks authorization codes so each one is exchanged at most once
type Repo interface {
	// Consume marks the code as used. It returns false when the code was
	// already consumed; the check and the mark are a single atomic step.
	Consume(code string, consumed ConsumedCode) (bool, error)
	Get(code string) (*ConsumedCode, error)
	// DeleteOlderThan forgets codes consumed before the cutoff
	DeleteOlderThan(cutoff time.Time) error
}
