// Package faults classifies errors from external collaborators into a small
// closed set of kinds. Collaborator packages (HTTP clients, the parameter
// store, object storage) map their raw errors into a kind at the integration
// boundary, so retry and propagation logic never inspects provider-specific
// error shapes.
package faults

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the failure class of an error.
type Kind int

const (
	// KindUnknown marks errors that were never classified.
	KindUnknown Kind = iota

	// KindTransient marks server-side or rate-limit failures that are safe
	// to retry (HTTP 429/5xx, store-internal faults).
	KindTransient

	// KindAuth marks authentication/authorization failures. Never retried.
	KindAuth

	// KindNotFound marks missing parameters or objects. Never retried.
	KindNotFound

	// KindValidation marks malformed input data. Never retried.
	KindValidation
)

// String returns a short label for the kind.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a classified failure raised by a pipeline stage.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable server-side failure.
func Transient(stage string, err error) error {
	return &Error{Kind: KindTransient, Stage: stage, Err: err}
}

// Auth wraps err as an authentication/authorization failure.
func Auth(stage string, err error) error {
	return &Error{Kind: KindAuth, Stage: stage, Err: err}
}

// NotFound wraps err as a missing-resource failure.
func NotFound(stage string, err error) error {
	return &Error{Kind: KindNotFound, Stage: stage, Err: err}
}

// Validation wraps err as a data-validation failure.
func Validation(stage string, err error) error {
	return &Error{Kind: KindValidation, Stage: stage, Err: err}
}

// FromStatus classifies a non-2xx HTTP status. Rate limits and server errors
// are transient; 404 is not-found; every other client error is an auth-class
// failure that must not be retried.
func FromStatus(stage string, status int, detail string) error {
	msg := fmt.Sprintf("unexpected status %d", status)
	if detail != "" {
		msg = fmt.Sprintf("unexpected status %d: %s", status, detail)
	}

	err := errors.New(msg)
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return Transient(stage, err)
	case status == http.StatusNotFound:
		return NotFound(stage, err)
	default:
		return Auth(stage, err)
	}
}

// KindOf returns the kind of the nearest classified error in err's chain,
// or KindUnknown if none exists.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err should be retried by the backoff policy.
// Only transient failures qualify; unclassified errors propagate immediately.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
