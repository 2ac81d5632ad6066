package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrUpstreamUnavailable = errors.New("upstream api unavailable")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrEntryNotFound       = errors.New("leaderboard entry not found")
	ErrKeyNotFound         = errors.New("key not found")
	ErrSessionNotFound     = errors.New("session not found")
)

// UpstreamError reports a failed call to the Battle.net API with the HTTP
// status and reason string returned by the endpoint. It unwraps to
// ErrUpstreamUnavailable so callers can match on the error kind.
type UpstreamError struct {
	Status int
	Reason string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("battle.net request failed: status %d: %s", e.Status, e.Reason)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamUnavailable
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrKeyNotFound)
}
