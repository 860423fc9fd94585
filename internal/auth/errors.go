package auth

import "errors"

var (
	// ErrNoRefreshToken is returned when a refresh is requested while the
	// session holds no refresh token. No network call is made.
	ErrNoRefreshToken = errors.New("auth: no refresh token available")

	// ErrRefreshFailed wraps every failed refresh round-trip. The session
	// has been cleared by the time a caller sees it.
	ErrRefreshFailed = errors.New("auth: token refresh failed")

	// ErrRefreshDenied marks a refresh the peer answered and rejected, as
	// opposed to one that never reached it.
	ErrRefreshDenied = errors.New("auth: refresh token rejected")
)
