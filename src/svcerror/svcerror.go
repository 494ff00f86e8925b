// backend/src/svcerror/svcerror.go
package svcerror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for UI-facing propagation. Everything crossing
// the handler boundary is a kind plus a message, never a raw stack trace.
type Kind string

const (
	// KindTransport covers failed fetches and non-2xx responses with no
	// parseable body. Retryable; pollers keep ticking through these.
	KindTransport Kind = "transport"

	// KindValidation covers amount/phone/format failures reported
	// field-by-field before any backend write.
	KindValidation Kind = "validation"

	// KindBusinessRule covers backend-reported rule violations such as a
	// locked wallet or insufficient shares remaining.
	KindBusinessRule Kind = "business_rule"

	// KindInconsistency covers reconciliation anomalies: a native status
	// invalid for its type, or a terminal status moving backwards.
	KindInconsistency Kind = "inconsistency"

	// KindTimeout marks a poll budget exhausted without a terminal status.
	// Distinct from failure so consumers can say "still processing".
	KindTimeout Kind = "timeout"

	// KindRefresh marks a successful backend write whose follow-up
	// re-fetch failed. The write is not rolled back.
	KindRefresh Kind = "refresh"
)

// Error is a structured service error.
type Error struct {
	Kind    Kind
	Message string
	Field   string // set for validation errors
	Err     error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a service error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a service error around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// FieldError builds a validation error tied to a specific input field.
func FieldError(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field}
}

// KindOf extracts the kind from an error chain. Unclassified errors are
// reported as transport errors, the generic retryable bucket.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransport
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
