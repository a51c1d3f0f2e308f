package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinels matched with errors.Is. The typed errors below unwrap to one of
// them.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrParse marks an upstream payload (JSON, HTML or YAML) that could not
	// be decoded into papers.
	ErrParse = errors.New("parse failure")
)

// ValidationError rejects a caller-supplied value such as a paper id or a
// search query.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NotFoundError names the missing entity, e.g. ("paper", "2601.20802") or
// ("preference", "overview_language").
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found: " + e.ID
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// RateLimitError is returned when a source's limiter or a 429 response
// refuses a request. RetryAfter is zero when unknown.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Source: source, RetryAfter: retryAfter}
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return "rate limited by " + e.Source
	}
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// ExternalAPIError is a failed call to alphaXiv (API, site or PDF mirror).
type ExternalAPIError struct {
	Source     string
	StatusCode int // 0 when no response was received
	Message    string
	Cause      error
}

func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{Source: source, StatusCode: statusCode, Message: message, Cause: cause}
}

func (e *ExternalAPIError) Error() string {
	if e.StatusCode == 0 {
		return e.Source + " request failed: " + e.Message
	}
	return fmt.Sprintf("%s returned %d: %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap prefers the recorded cause; otherwise the status code picks the
// sentinel.
func (e *ExternalAPIError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrServiceUnavailable
	}
}
