package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated means no access token has ever been obtained; the
	// caller must start the authorization flow.
	ErrNotAuthenticated = errors.New("not authenticated with Google Calendar")

	// ErrNoRefreshToken means a refresh is impossible and the full browser
	// flow must be restarted.
	ErrNoRefreshToken = errors.New("no refresh token available, re-authentication required")

	// ErrCallbackTimeout means no redirect arrived within the flow timeout.
	ErrCallbackTimeout = errors.New("timed out waiting for OAuth callback")

	// ErrInvalidCallback means the redirect carried neither a code nor an error.
	ErrInvalidCallback = errors.New("invalid OAuth callback: no code or error present")
)

// ConfigError reports missing OAuth client credentials. Not retryable; the
// user has to fix the configuration file.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("google_calendar.%s must be configured", e.Field)
}

// ListenerError reports a failure to bind the loopback callback listener,
// typically because the port is still held by a previous aborted flow.
type ListenerError struct {
	Addr string
	Err  error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("failed to start callback listener on %s: %v", e.Addr, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}

// AuthorizationError carries a denial reported by the provider on the
// redirect (e.g. access_denied). Terminal for this flow attempt.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization denied: %s", e.Reason)
}

// TokenRequestError is a non-success response from the token endpoint,
// surfaced verbatim with status and body for diagnosis. Op is "exchange"
// or "refresh".
type TokenRequestError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *TokenRequestError) Error() string {
	return fmt.Sprintf("token %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}
