package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for the provider credential and call path. All of them are
// returned, never panicked, and callers branch with errors.Is.
var (
	// ErrNotConnected indicates no stored credential exists for the identity
	ErrNotConnected = errors.New("not connected: no credential stored for identity")
	// ErrCredentialExpired indicates the credential expired and no refresh token is available
	ErrCredentialExpired = errors.New("credential expired: re-authorization required")
	// ErrRefreshFailed indicates the provider rejected a refresh-token exchange
	ErrRefreshFailed = errors.New("token refresh failed: re-authorization required")
	// ErrAuthFailed indicates the provider rejected our access token
	ErrAuthFailed = errors.New("provider rejected credentials")
	// ErrForbidden indicates the delegated account lacks permission for the resource
	ErrForbidden = errors.New("provider permission denied")
	// ErrNotFound indicates the provider resource does not exist
	ErrNotFound = errors.New("provider resource not found")
	// ErrValidation indicates malformed caller input or payload
	ErrValidation = errors.New("validation failed")
	// ErrNetworkTimeout indicates an outbound call exceeded its deadline
	ErrNetworkTimeout = errors.New("provider request timed out")
	// ErrConfiguration indicates a deployment defect, e.g. a missing or wrong master key
	ErrConfiguration = errors.New("configuration error")
)

// RateLimitedError is returned when the outbound limiter denies a call before
// any I/O happens. RetryAfter is rounded up to whole seconds.
type RateLimitedError struct {
	RetryAfter time.Duration
	Remaining  int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// IsRateLimited reports whether err is a local rate-limit denial and returns
// the wait hint when it is.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// APIError carries an unexpected provider response through to the caller with
// enough context to debug it. Message holds the provider's own error text when
// one could be extracted from the body.
type APIError struct {
	StatusCode int
	Body       []byte
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider api error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider api error: status %d", e.StatusCode)
}

// IsProviderRateLimited reports whether err is the provider throttling us
// (HTTP 429 upstream), as opposed to our own limiter denying the call.
func IsProviderRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// AuthInvalidError is returned for inbound requests that fail signature or
// token checks. Reason names only the documented failure category.
type AuthInvalidError struct {
	Reason string
}

func (e *AuthInvalidError) Error() string {
	return "authentication invalid: " + e.Reason
}

// NewAuthInvalid builds an AuthInvalidError with the given category.
func NewAuthInvalid(reason string) *AuthInvalidError {
	return &AuthInvalidError{Reason: reason}
}

// IsAuthInvalid reports whether err is an inbound authentication failure.
func IsAuthInvalid(err error) bool {
	var ae *AuthInvalidError
	return errors.As(err, &ae)
}
