package errors

import (
	"errors"
	"fmt"
)

// Common error types for the FHIR client
var (
	// Authorization errors
	ErrAuthExchange             = errors.New("token exchange failed")
	ErrInvalidAuthorizationCode = errors.New("invalid authorization code")
	ErrCodeConsumed             = errors.New("authorization code already exchanged")
	ErrStateMismatch            = errors.New("state parameter mismatch")
	ErrAuthorizationDenied      = errors.New("authorization denied")
	ErrNotAuthenticated         = errors.New("not authenticated")

	// Resource errors
	ErrFetch = errors.New("resource fetch failed")

	// Bulk export errors
	ErrSubmission = errors.New("bulk export submission failed")
	ErrPoll       = errors.New("bulk export status check failed")
	ErrJobFailed  = errors.New("bulk export job failed")

	// General errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
