package models

import "errors"

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbidden              = errors.New("access denied")

	ErrNotFound        = errors.New("not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrRatingNotFound  = errors.New("rating not found")

	ErrAlreadyExists    = errors.New("already exists")
	ErrAlreadyEnded     = errors.New("session already ended")
	ErrAlreadySubmitted = errors.New("rating already submitted")
	ErrSessionNotActive = errors.New("session is not active")
	ErrSessionFresh     = errors.New("session has recent activity")

	ErrValidation    = errors.New("validation error")
	ErrOutOfRange    = errors.New("rating must be between 1 and 5")
	ErrInvalidCursor = errors.New("invalid cursor")
)

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrRatingNotFound)
}

// IsConflict reports whether err is a state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAlreadyEnded) ||
		errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrSessionNotActive)
}

// IsValidation reports whether err was caused by a malformed request.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrInvalidCursor)
}
