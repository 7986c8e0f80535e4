package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies upstream failures for retry and fallback decisions
type Kind int

const (
	// KindTransient - timeouts, connection errors and 5xx; retryable with backoff
	KindTransient Kind = iota

	// KindRateLimited - HTTP 429; retryable after the indicated interval
	KindRateLimited

	// KindBadRequest - HTTP 400 and other non-auth 4xx; not retryable for the same model
	KindBadRequest

	// KindAuthFailure - HTTP 401/403; fatal for the whole completion call
	KindAuthFailure

	// KindCredentialMissing - API key or base URL not configured
	KindCredentialMissing

	// KindFeedFailure - a read-only data feed failed; surfaced to the caller as-is
	KindFeedFailure
)

// String returns a human-readable kind name used in logs and metric labels
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindBadRequest:
		return "bad_request"
	case KindAuthFailure:
		return "auth_failure"
	case KindCredentialMissing:
		return "credential_missing"
	case KindFeedFailure:
		return "upstream_feed_failure"
	default:
		return "transient_transport"
	}
}

// Code returns the stable error code exposed to API clients
func (k Kind) Code() string {
	return strings.ToUpper(k.String())
}

// Error is the common failure shape of every upstream adapter
type Error struct {
	Service    string
	Kind       Kind
	StatusCode int           // HTTP status code if applicable
	RetryAfter time.Duration // server-indicated wait, zero when absent
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: [%d] %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Code returns the stable error code exposed to API clients
func (e *Error) Code() string {
	return e.Kind.Code()
}

// Retryable reports whether the same request may succeed on a later attempt
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindRateLimited
}

// KindOf extracts the Kind of err, defaulting to transient for unclassified errors
func KindOf(err error) Kind {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Kind
	}
	return KindTransient
}

// MissingCredential builds the error returned when a key or URL is not configured
func MissingCredential(service, name string) *Error {
	return &Error{
		Service: service,
		Kind:    KindCredentialMissing,
		Message: fmt.Sprintf("%s is not set", name),
	}
}

// ClassifyHTTPError classifies a non-2xx HTTP response
func ClassifyHTTPError(service string, statusCode int, header http.Header, body string) *Error {
	err := &Error{
		Service:    service,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", statusCode, truncateString(body, 200)),
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		err.Kind = KindRateLimited
		if header != nil {
			err.RetryAfter = ParseRetryAfter(header.Get("Retry-After"))
		}

	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		err.Kind = KindAuthFailure

	case statusCode == http.StatusRequestTimeout:
		err.Kind = KindTransient

	case statusCode >= 500:
		err.Kind = KindTransient

	// 400, 404 (unknown/decommissioned model), 422 and friends
	case statusCode >= 400:
		err.Kind = KindBadRequest

	default:
		err.Kind = KindTransient
	}

	return err
}

// ClassifyError classifies a transport-level error (no HTTP response)
func ClassifyError(service string, err error) *Error {
	if err == nil {
		return nil
	}

	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Service: service, Kind: KindTransient, Message: "request timed out", Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Service: service, Kind: KindTransient, Message: "request timed out", Cause: err}
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "EOF") {
		return &Error{
			Service: service,
			Kind:    KindTransient,
			Message: fmt.Sprintf("network error: %s", truncateString(errStr, 100)),
			Cause:   err,
		}
	}

	return &Error{
		Service: service,
		Kind:    KindTransient,
		Message: truncateString(errStr, 200),
		Cause:   err,
	}
}

// ParseRetryAfter parses a Retry-After header given in seconds or as an HTTP date
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
