package models

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced synchronously to API callers.
var (
	// ErrNotFound covers absent entities and cross-owner lookups alike, so
	// existence is never leaked across owners.
	ErrNotFound = errors.New("not found")

	// ErrNotRetryable is returned when retry is requested for a page that
	// is not in the failed state.
	ErrNotRetryable = errors.New("only failed pages can be retried")

	// ErrExtraction covers HTML that cannot be parsed at all. Treated as
	// fetch-equivalent for page status purposes.
	ErrExtraction = errors.New("failed to extract links from page")
)

// ConflictError is returned when a submitted URL already exists for the
// owner (case-insensitive compare over live pages). ExistingPageID lets the
// client link to the page that already holds the results.
type ConflictError struct {
	URL            string
	ExistingPageID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("url already exists for owner: %s", e.URL)
}

// ValidationError is returned for malformed input: bad URLs, bad pagination
// parameters, missing fields. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// FetchErrorKind classifies transport failures.
type FetchErrorKind string

const (
	FetchErrNetwork    FetchErrorKind = "network"
	FetchErrTimeout    FetchErrorKind = "timeout"
	FetchErrHTTPStatus FetchErrorKind = "http-status"
)

// FetchError wraps any failure to retrieve a page body: connection errors,
// timeouts, and non-2xx responses.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchErrHTTPStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case FetchErrTimeout:
		return fmt.Sprintf("fetch %s: timed out", e.URL)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is a duplicate-URL conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
