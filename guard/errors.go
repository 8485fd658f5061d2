package guard

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable reason reported to callers for a guard decision.
type Code string

const (
	CodeUnauthorized       Code = "unauthorized"
	CodeCSRF               Code = "csrf_bad"
	CodeRateLimited        Code = "ratelimited"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeMFARequired        Code = "mfa_required"
	CodeMFABad             Code = "mfa_bad"
)

// Status returns the HTTP status a presentation layer should use for c.
// CodeMFARequired is a state signal and maps to 200.
func (c Code) Status() int {
	switch c {
	case CodeUnauthorized, CodeInvalidCredentials, CodeMFABad:
		return http.StatusUnauthorized
	case CodeCSRF:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusOK
	}
}

var (
	ErrUnauthorized       = errors.New("login required")
	ErrCSRF               = errors.New("invalid CSRF token")
	ErrRateLimited        = errors.New("too many requests")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMFABad             = errors.New("invalid one-time code")
	// ErrNoPendingLogin is returned by the MFA step when the session has no
	// identity awaiting a code, or the pending identity was abandoned.
	ErrNoPendingLogin = errors.New("no pending login")
)

// RateLimitError is returned when the fixed-window limiter denies a request.
type RateLimitError struct {
	RetryAfter int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many requests; retry in %ds", e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterOf returns the retry hint carried by err, or 0 if err is not a
// rate-limit denial.
func RetryAfterOf(err error) int {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter
	}
	return 0
}

// CodeOf maps a guard error to its Code. Unknown errors map to
// CodeUnauthorized so that nothing unexpected is ever treated as a pass.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCSRF):
		return CodeCSRF
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrMFABad):
		return CodeMFABad
	default:
		return CodeUnauthorized
	}
}
