package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Session errors
	ErrSessionExpired = errors.New("session expired")
	ErrInvalidCSRF    = errors.New("invalid csrf token")

	// Account state errors
	ErrAccountInactive = errors.New("account is inactive")
	ErrAccountLocked   = errors.New("account is temporarily locked")

	// Throttling errors
	ErrTooManyAttempts   = errors.New("too many login attempts")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)
