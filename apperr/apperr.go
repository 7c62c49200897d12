// Package apperr provides the error taxonomy shared by handlers and the dispatch pipeline.
package apperr

import "errors"

// Kind classifies an error by how the pipeline must react to it.
type Kind int

const (
	// Unknown is an unclassified error. It is treated like Transient.
	Unknown Kind = iota
	// Validation is a bad or missing argument. The user gets a corrective reply.
	Validation
	// Authorization is a role or ownership mismatch. The user gets a denial.
	Authorization
	// Conflict is an operation clashing with existing state (e.g. a game already running).
	Conflict
	// NotFound is a missing session, group or record.
	NotFound
	// Transient is a store or collaborator failure. Logged, generic reply.
	Transient
	// Fatal halts the process. Only used during startup.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authorization:
		return "authorization"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified error. Message is safe to show to chat users.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// UserFacing reports whether the error message may be replied to the user as is.
func UserFacing(err error) bool {
	switch KindOf(err) {
	case Validation, Authorization, Conflict, NotFound:
		return true
	default:
		return false
	}
}

// Message returns the user-facing message of the outermost classified error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
