package auth

import "errors"

var (
	// ErrMissingSecret is returned when the token authority is built without a
	// signing key. Callers must treat it as fatal at startup.
	ErrMissingSecret = errors.New("auth: signing secret is not configured")

	ErrEmptySubject       = errors.New("auth: token subject is empty")
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrExpiredToken       = errors.New("auth: token expired")
	ErrUnknownSubject     = errors.New("auth: token subject no longer exists")

	ErrEmptyPassword    = errors.New("auth: password is empty")
	ErrPasswordTooLong  = errors.New("auth: password exceeds 72 bytes")
	ErrPasswordMismatch = errors.New("auth: password does not match hash")
)
