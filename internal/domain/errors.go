package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrInvalidOrExpired rejects a verification token that is unknown, consumed, expired or forged.
	ErrInvalidOrExpired = errors.New("invalid or expired token")
	// ErrInvalidToken rejects a refresh token that is not the live one for its account.
	ErrInvalidToken = errors.New("invalid refresh token")
	ErrRateLimited  = errors.New("too many login attempts")
	ErrUnverified   = errors.New("email not verified")
	ErrDeactivated  = errors.New("account deactivated")
	ErrTimeout      = errors.New("operation timed out")

	// ErrDependencyUnavailable marks a cache or channel outage on a load-bearing path.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
