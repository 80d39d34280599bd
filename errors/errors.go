// Package errors implements an error type that carries an interpretable
// Kind and Severity, so that error-producing operations across the file
// system layer can be handled consistently: a storage-exhaustion error is
// handled differently than a corrupt on-disk structure, and both are
// handled differently from a context cancellation. Errors can be chained,
// attributing one error to another.
//
// Programming-error conditions (violated preconditions) do not belong in
// this package; see package must for those.
package errors

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strings"

	stderrors "errors"
)

// Kind defines the type of error. Kinds are semantically meaningful, and
// may be interpreted by the receiver of an error (e.g., to decide whether
// a caller should roll back a partial allocation).
type Kind int

const (
	// Other indicates an unknown error.
	Other Kind = iota
	// Canceled indicates a context cancellation.
	Canceled
	// NotExist indicates a nonexistent sector, inode, or file.
	NotExist
	// Invalid indicates that the caller supplied invalid parameters.
	// Per the file system's error handling design, most Invalid
	// conditions are programming errors and are instead reported via
	// package must; this Kind is used where an invalid parameter is
	// reported as an error instead (e.g. a malformed CLI flag, or a
	// sector outside an in-memory device's range).
	Invalid
	// Integrity indicates an on-disk structure failed a consistency
	// check (e.g. an inode's magic number does not match).
	Integrity
	// ResourcesExhausted indicates that the free-sector map could not
	// satisfy an allocation request.
	ResourcesExhausted
	// Precondition indicates an operation was attempted in a state that
	// does not allow it.
	Precondition
	// Internal indicates a failure in the file system's own bookkeeping
	// that should never happen in a correct build; see also must.
	Internal

	maxKind
)

var kinds = map[Kind]string{
	Other:              "unknown error",
	Canceled:           "operation was canceled",
	NotExist:           "resource does not exist",
	Invalid:            "invalid argument",
	Integrity:          "integrity error",
	ResourcesExhausted: "resources exhausted",
	Precondition:       "precondition failed",
	Internal:           "internal error",
}

// String returns a human-readable explanation of the error kind k.
func (k Kind) String() string {
	return kinds[k]
}

// Severity defines an Error's severity. An Error's severity determines
// whether an error-producing operation may be retried or not.
type Severity int

const (
	// Retriable indicates that the failing operation can be safely
	// retried, regardless of application context.
	Retriable Severity = -2
	// Temporary indicates that the underlying error condition is likely
	// temporary, and can possibly be retried in an application-specific
	// context.
	Temporary Severity = -1
	// Unknown is the default severity.
	Unknown Severity = 0
	// Fatal indicates that the underlying error condition is
	// unrecoverable; retrying is unlikely to help.
	Fatal Severity = 1
)

var severities = map[Severity]string{
	Retriable: "retriable",
	Temporary: "temporary",
	Unknown:   "unknown",
	Fatal:     "fatal",
}

// String returns a human-readable explanation of the error severity s.
func (s Severity) String() string {
	return severities[s]
}

// Error is the standard error type used throughout this module. Errors
// should be constructed with E, which interprets its arguments according
// to a set of rules.
type Error struct {
	// Kind is the error's type.
	Kind Kind
	// Severity is an optional severity.
	Severity Severity
	// Message is an optional error message associated with this error.
	Message string
	// Err is the error that caused this error, if any. Errors form
	// chains through Err: the full chain is printed by Error().
	Err error
}

// E constructs a new error from the provided arguments. Arguments are
// interpreted according to their types:
//
//   - Kind: sets the Error's kind
//   - Severity: sets the Error's severity
//   - string: sets the Error's message; multiple strings are joined with
//     a single space
//   - *Error: copies the error and sets it as the cause
//   - error: sets the Error's cause
//
// If a Kind is not provided but an underlying error is, E attempts to
// infer one: a context.Canceled cause maps to Canceled, and when the cause
// is itself an *Error, the new error takes over that error's Kind.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case Severity:
			e.Severity = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(arg)
		case *Error:
			cp := *arg
			if len(args) == 1 {
				return &cp
			}
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			return &Error{
				Kind:    Invalid,
				Message: fmt.Sprintf("errors.E: bad call (type %T) from %s:%d: %v", arg, file, line, arg),
			}
		}
	}
	e.Message = msg.String()
	if e.Err == nil {
		return e
	}
	switch prev := e.Err.(type) {
	case *Error:
		if prev.Kind == e.Kind || e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
		if prev.Severity == e.Severity || e.Severity == Unknown {
			e.Severity = prev.Severity
			prev.Severity = Unknown
		}
	default:
		if e.Kind == Other && stderrors.Is(e.Err, context.Canceled) {
			e.Kind = Canceled
		}
	}
	return e
}

// Error returns a human-readable string describing this error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		pad(b, ": ")
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Severity != Unknown {
		pad(b, " ")
		b.WriteByte('(')
		b.WriteString(e.Severity.String())
		b.WriteByte(')')
	}
	if e.Err == nil {
		return
	}
	if err, ok := e.Err.(*Error); ok {
		pad(b, ": ")
		b.WriteString(err.Error())
	} else {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}

// Temporary tells whether this error is temporary.
func (e *Error) Temporary() bool {
	return e.Severity <= Temporary
}

// Unwrap returns e's cause, if any, or nil, so that the standard
// library's errors.Unwrap and errors.Is/As work with *Error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is tells whether err is of kind k. Unlike the standard library's
// errors.Is, this walks the Err chain looking for the first *Error and
// compares its Kind.
func Is(k Kind, err error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == k
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Match returns true if err1 and err2 are both *Error and share a Kind.
func Match(err1, err2 error) bool {
	e1, ok1 := err1.(*Error)
	e2, ok2 := err2.(*Error)
	if !ok1 || !ok2 {
		return false
	}
	return e1.Kind == e2.Kind
}

