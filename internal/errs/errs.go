// Package errs defines the error kinds used across stagebus subsystems.
//
// Subsystems recover transient faults locally and never panic the
// process over them; sustained faults are surfaced as one of these
// kinds so the HTTP layer can translate them into structured response
// bodies without inspecting string messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a tagged error category. Every error that crosses a subsystem
// boundary wraps one of these.
type Kind string

const (
	KindConfigInvalid      Kind = "config_invalid"
	KindDeviceUnavailable  Kind = "device_unavailable"
	KindNoSignal           Kind = "no_signal"
	KindPipelineConstruct  Kind = "pipeline_construction"
	KindPipelineRuntime    Kind = "pipeline_runtime"
	KindResourceContention Kind = "resource_contention"
	KindDiskExhausted      Kind = "disk_exhausted"
	KindTimeout            Kind = "timeout"
	KindInvalidRequest     Kind = "invalid_request"
)

// Error is a structured error carrying a Kind plus any ids relevant to
// the caller (e.g. missing source names for a rejected scene).
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetails attaches structured detail strings (e.g. missing source ids).
func (e *Error) WithDetails(details ...string) *Error {
	e.Details = details
	return e
}

// KindOf extracts the Kind from err, if any *Error is present in its chain.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}
