// Package errs defines the closed set of error kinds of spec.md §7 and a
// small wrapping helper so every component reports failures the same way.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the nine error kinds spec.md §7 names.
type Kind string

// Known Kind values.
const (
	Config           Kind = "config_error"
	Auth             Kind = "auth_error"
	Network          Kind = "network_error"
	Protocol         Kind = "protocol_error"
	CommandRejected  Kind = "command_rejected"
	PermissionDenied Kind = "permission_denied"
	RateLimited      Kind = "rate_limited"
	Timeout          Kind = "timeout"
	Internal         Kind = "internal_error"
)

// Error wraps an underlying cause with one of the closed Kind values so
// callers can branch with errors.As without string matching.
type Error struct {
	Kind    Kind
	Guild   string
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, guildID, message string, cause error) *Error {
	return &Error{Kind: kind, Guild: guildID, Cause: cause, Message: message}
}

// Is reports whether the first *Error in err's chain has the given Kind.
// A nested *Error further down that chain is not inspected.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
