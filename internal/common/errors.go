// Package common defines shared sentinel errors used across the server
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Token lifecycle errors. Everything below collapses to ErrInvalidToken
	// at the token service boundary; the detailed variants exist for the
	// codec and for internal logging only.
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenMalformed   = errors.New("malformed token")
	ErrSignatureInvalid = errors.New("invalid token signature")
)
