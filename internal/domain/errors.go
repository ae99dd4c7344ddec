package domain

import "errors"

// Domain errors
var (
	ErrRaceNotFound        = errors.New("race not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrRiderNotFound       = errors.New("rider not found")
	ErrConstructorNotFound = errors.New("constructor not found")
	ErrUnknownSport        = errors.New("unknown sport")
	ErrInvalidRoster       = errors.New("invalid roster")
	ErrOverBudget          = errors.New("roster exceeds budget")
	ErrRaceLocked          = errors.New("race has already started")
	ErrForbidden           = errors.New("administrative privileges required")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrPersistence         = errors.New("persistence failure")
	ErrRunInProgress       = errors.New("price adjustment already running")
	ErrCacheMiss           = errors.New("cache miss")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrRaceNotFound) ||
		errors.Is(err, ErrParticipantNotFound) ||
		errors.Is(err, ErrRiderNotFound) ||
		errors.Is(err, ErrConstructorNotFound) ||
		errors.Is(err, ErrUnknownSport)
}
