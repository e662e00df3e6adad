// Package common defines shared constants and sentinel errors used across
// the gophauth server, its transports and its clients. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("already exists")

	// Service-level errors.
	ErrorInternal         = errors.New("internal error")
	ErrValidation         = errors.New("validation error")
	ErrInvalidCredentials = errors.New("invalid username/email or password")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrRevocationFailed   = errors.New("token revocation failed")

	// Caller identity errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
)

// IsAuthError reports whether err is one of the token or identity failures
// that end a request with 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidCredentials)
}
