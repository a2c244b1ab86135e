// Package common defines shared constants and sentinel errors used across
// the store, sync, ingestion and cloud layers. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Input errors: oversized, unreadable or undecodable content.
	ErrDataValidation = errors.New("data validation failed")

	// Repository-level errors.
	ErrNotFound     = errors.New("not found")
	ErrNameConflict = errors.New("name conflict")

	// Ingestion errors.
	ErrUnsupportedType      = errors.New("unsupported content type")
	ErrInaccessibleResource = errors.New("inaccessible resource")

	// Remote fetch, accept or share failures.
	ErrSyncFailure = errors.New("sync failure")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("server unavailable")
)

// Wrap tags cause with a taxonomy sentinel so that both match errors.Is.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// Wrapf tags a formatted message with a taxonomy sentinel.
func Wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
