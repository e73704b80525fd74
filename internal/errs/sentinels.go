// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across client, session and server layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates rejected or expired credentials.
	// In the session layer it always clears the current session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTenantSwitch indicates the target tenant is invalid or not accessible to the user.
	ErrTenantSwitch = errors.New("tenant switch rejected")

	// ErrTransient indicates a network or server failure; the caller may retry.
	ErrTransient = errors.New("transient failure")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates a request failed validation before reaching the backend.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotAuthenticated indicates an operation that needs a session was called without one.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrBusy indicates another mutating session operation is still in flight.
	ErrBusy = errors.New("operation in progress")

	// ErrSuperseded indicates the session was cleared while the operation was in flight,
	// so its result was dropped.
	ErrSuperseded = errors.New("superseded by logout")

	// ErrAlreadyInitialized indicates Initialize was called twice on the same manager.
	ErrAlreadyInitialized = errors.New("already initialized")
)

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return errors.Is(err, ErrUnauthorized) }
