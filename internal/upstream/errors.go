// Package upstream classifies failures of the hosted providers (LLM, search) the
// pipeline depends on and retries the transient ones.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

var (
	// ErrUnavailable means a provider could not be reached or answered with a failure status.
	ErrUnavailable = errors.New("upstream unavailable")
	// ErrUnparseable means a provider answered but its output did not match the expected schema.
	ErrUnparseable = errors.New("upstream returned unparseable output")
	// ErrTimeout means a per-call timeout or the request deadline expired.
	ErrTimeout = errors.New("upstream timeout")
)

// StatusError carries the HTTP status of a failed provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrUnavailable) match any status error.
func (e *StatusError) Unwrap() error {
	return ErrUnavailable
}

// Retryable reports whether the status indicates a transient condition.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Unparseable wraps err as an ErrUnparseable for the named stage.
func Unparseable(stage string, err error) error {
	return fmt.Errorf("%s: %w: %w", stage, ErrUnparseable, err)
}

// Classify maps a raw provider error onto the taxonomy. Errors that already carry
// a taxonomy sentinel are returned unchanged.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUnparseable) || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", provider, ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if code, msg, ok := sdkStatus(err); ok {
		return &StatusError{Provider: provider, StatusCode: code, Body: msg}
	}
	return fmt.Errorf("%s: %w: %w", provider, ErrUnavailable, err)
}

// IsTransient reports whether err is worth retrying. Parse errors, cancellations and
// expired deadlines are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnparseable) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	if code, _, ok := sdkStatus(err); ok {
		return (&StatusError{StatusCode: code}).Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, ErrUnavailable)
}

// sdkStatus extracts the HTTP status from errors of the Google API clients.
func sdkStatus(err error) (int, string, bool) {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code, gerr.Message, true
	}
	var aerr genai.APIError
	if errors.As(err, &aerr) && aerr.Code != 0 {
		return aerr.Code, aerr.Message, true
	}
	return 0, "", false
}
