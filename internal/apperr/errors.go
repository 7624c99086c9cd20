// Package apperr defines the typed failures returned by the availability
// search and the reservation commit pipeline.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindResourceUnavailable Kind = "resource_unavailable"
	KindClosedScope         Kind = "closed_scope"
	KindConflict            Kind = "conflict"
	KindInternal            Kind = "internal"
)

// Stable machine-readable codes.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeResourceNotFound = "AVAILABILITY_RESOURCE_NOT_FOUND"
	CodeQueryFailed      = "AVAILABILITY_QUERY_FAILED"

	CodeValidationFailed = "RESERVATIONS_VALIDATION_FAILED"
	CodeDisabledResource = "RESERVATIONS_DISABLED_RESOURCE"
	CodeClosedScope      = "RESERVATIONS_CLOSED_SCOPE"
	CodeConflict         = "RESERVATIONS_CONFLICT"
	CodeInternal         = "RESERVATIONS_INTERNAL_ERROR"
)

// Issue is one field-level validation problem.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error is a classified failure carrying an HTTP-style status class.
type Error struct {
	Kind    Kind
	Code    string
	Status  int
	Message string
	Issues  []Issue
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusFor returns the status class of a kind.
func StatusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindResourceUnavailable:
		return http.StatusNotFound
	case KindClosedScope, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Status: StatusFor(kind), Message: message}
}

// Validation reports malformed or contradictory input.
func Validation(code string, issues ...Issue) *Error {
	e := newError(KindValidation, code, "validation failed")
	e.Issues = issues
	return e
}

// ResourceUnavailable reports a missing or disabled resource.
func ResourceUnavailable(code, resource string, disabled bool) *Error {
	msg := resource + " not found"
	if disabled {
		msg = resource + " is currently unavailable"
	}
	e := newError(KindResourceUnavailable, code, msg)
	e.Details = map[string]any{"resource": resource, "disabled": disabled}
	return e
}

// ClosedScope reports a calendar exception blocking the interval.
func ClosedScope(scope, targetID string, start, end int64) *Error {
	e := newError(KindClosedScope, CodeClosedScope, "reservation is blocked by calendar exception")
	var target any
	if targetID != "" {
		target = targetID
	}
	e.Details = map[string]any{
		"scope":    scope,
		"targetId": target,
		"start":    start,
		"end":      end,
	}
	return e
}

// Conflict reports an overlap with existing reservations.
func Conflict(message string, details map[string]any) *Error {
	e := newError(KindConflict, CodeConflict, message)
	e.Details = details
	return e
}

// Internal wraps an unclassified failure.
func Internal(code, message string, err error) *Error {
	e := newError(KindInternal, code, message)
	e.Err = err
	return e
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
