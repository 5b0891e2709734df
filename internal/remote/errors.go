// Package remote implements read-only connectors for hosted git providers.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/huangsam/gitpulse/schema"
)

// AuthenticationError means the credentials were rejected. Never retried.
type AuthenticationError struct {
	Provider schema.Provider
	Message  string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s authentication failed: %s", e.Provider, e.Message)
}

// RateLimitError means the provider throttled the request.
type RateLimitError struct {
	Provider   schema.Provider
	RetryAfter time.Duration // zero when the provider gave no hint
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded (retry after %s): %s", e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("%s rate limit exceeded: %s", e.Provider, e.Message)
}

// NotFoundError means the addressed resource does not exist or is not visible. Never retried.
type NotFoundError struct {
	Provider schema.Provider
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s resource not found: %s", e.Provider, e.Resource)
}

// PaginationError means a page could not be decoded or the cursor was inconsistent.
type PaginationError struct {
	Provider schema.Provider
	Page     int
	Err      error
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("%s pagination failed at page %d: %v", e.Provider, e.Page, e.Err)
}

func (e *PaginationError) Unwrap() error { return e.Err }

// APIError is any other provider failure. Transient is set for 5xx and network errors.
type APIError struct {
	Provider  schema.Provider
	Status    int
	Message   string
	Transient bool
	Err       error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s api error %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s api error: %s", e.Provider, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsRetryable reports whether a failed call may succeed when repeated.
// Authentication and not-found errors are final; context cancellation is final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var (
		authErr  *AuthenticationError
		nfErr    *NotFoundError
		rlErr    *RateLimitError
		pageErr  *PaginationError
		apiErr   *APIError
		netErr   net.Error
		deadline = errors.Is(err, context.DeadlineExceeded)
	)
	switch {
	case errors.As(err, &authErr), errors.As(err, &nfErr):
		return false
	case errors.As(err, &rlErr), errors.As(err, &pageErr):
		return true
	case errors.As(err, &apiErr):
		return apiErr.Transient
	case errors.As(err, &netErr), deadline:
		return true
	}
	return false
}

// RetryAfter extracts the provider hint from a rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr.RetryAfter, true
	}
	return 0, false
}

// classifyStatus maps an HTTP status to the error taxonomy.
func classifyStatus(provider schema.Provider, status int, header http.Header, resource, message string) error {
	switch {
	case status == http.StatusUnauthorized:
		return &AuthenticationError{Provider: provider, Message: message}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Provider: provider, RetryAfter: parseRetryAfter(header), Message: message}
	case status == http.StatusForbidden && header.Get("X-RateLimit-Remaining") == "0":
		return &RateLimitError{Provider: provider, RetryAfter: parseRetryAfter(header), Message: message}
	case status == http.StatusNotFound:
		return &NotFoundError{Provider: provider, Resource: resource}
	default:
		return &APIError{Provider: provider, Status: status, Message: message, Transient: status >= 500}
	}
}

// parseRetryAfter reads Retry-After (seconds) or the X-RateLimit-Reset / RateLimit-Reset epoch.
func parseRetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	for _, key := range []string{"X-RateLimit-Reset", "RateLimit-Reset"} {
		if v := header.Get(key); v != "" {
			if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
				if d := time.Until(time.Unix(epoch, 0)); d > 0 {
					return d
				}
			}
		}
	}
	return 0
}
