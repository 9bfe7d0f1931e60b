// Package services defines the business logic for users, clicks, and
// statistics. The sentinel errors below are the whole failure vocabulary of
// the service layer; handlers switch on them to pick HTTP statuses, so the
// set stays small and each value names one predictable condition.
package services

import "errors"

// Click-challenge errors.
var (
	// ErrUserNotFound indicates that the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrClickNotFound indicates that the requested click does not exist.
	ErrClickNotFound = errors.New("click not found")

	// ErrEmptyName is returned when a display name is empty after
	// normalization.
	ErrEmptyName = errors.New("name is empty")

	// ErrNameTooLong is returned when a display name exceeds the maximum
	// allowed rune length.
	ErrNameTooLong = errors.New("name too long")

	// ErrNameTaken is returned when a rename targets a display name that
	// another user already holds.
	ErrNameTaken = errors.New("name already taken")

	// ErrInvalidTimestamp is returned when a click payload carries a
	// non-positive epoch timestamp.
	ErrInvalidTimestamp = errors.New("timestamp must be a positive epoch value")

	// ErrTooManyClicks is returned when a user submits clicks faster than
	// the anti-cheat window allows.
	ErrTooManyClicks = errors.New("too many clicks")
)
