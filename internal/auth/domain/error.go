package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidPassword    = errors.New("invalid_password")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrUserExists         = errors.New("user_already_exists")
	ErrSessionNotFound    = errors.New("session_not_found")
	ErrSessionExpired     = errors.New("session_expired")
	ErrSessionRevoked     = errors.New("session_revoked")
	ErrInvalidSession     = errors.New("invalid_session")

	// ErrUnauthenticated is the only error the session resolver surfaces.
	ErrUnauthenticated = errors.New("unauthenticated")
)
