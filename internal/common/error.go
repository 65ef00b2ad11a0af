// Package common defines shared constants and sentinel errors used across
// davkeeper components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrorValidation is returned for malformed input such as a pairing token
	// that is not alphanumeric or is too long.
	ErrorValidation = errors.New("validation error")

	// ErrStoreConflict is returned when a write keeps losing to concurrent
	// writers after all retries were spent.
	ErrStoreConflict = errors.New("store conflict")

	// Session cookie errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
