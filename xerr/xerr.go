// Package xerr defines the error classification shared by every codec
// package in this module. Errors never leak a concrete Go type to callers;
// instead every failure carries a Kind that callers can switch on.
package xerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why an operation failed. The zero Kind is never returned
// by this module's functions.
type Kind int

const (
	_ Kind = iota
	InvalidValue
	OutOfCore
	Conflict
	NoData
	NoValue
	BerError
	NotDerEncoded
	UnexpectedTag
	InvalidKeyInfo
	InvalidObject
	InvalidSexp
	UnknownSexp
	UnknownAlgorithm
	UnsupportedAlgorithm
	ObjectTooShort
	ObjectTooLarge
	ReadError
	InvalidCmsObject
	NoCmsObject
	UnsupportedCmsObject
	UnsupportedCmsVersion
	UnsupportedEncoding
	General
)

var names = map[Kind]string{
	InvalidValue:          "InvalidValue",
	OutOfCore:             "OutOfCore",
	Conflict:              "Conflict",
	NoData:                "NoData",
	NoValue:               "NoValue",
	BerError:              "BerError",
	NotDerEncoded:         "NotDerEncoded",
	UnexpectedTag:         "UnexpectedTag",
	InvalidKeyInfo:        "InvalidKeyInfo",
	InvalidObject:         "InvalidObject",
	InvalidSexp:           "InvalidSexp",
	UnknownSexp:           "UnknownSexp",
	UnknownAlgorithm:      "UnknownAlgorithm",
	UnsupportedAlgorithm:  "UnsupportedAlgorithm",
	ObjectTooShort:        "ObjectTooShort",
	ObjectTooLarge:        "ObjectTooLarge",
	ReadError:             "ReadError",
	InvalidCmsObject:      "InvalidCmsObject",
	NoCmsObject:           "NoCmsObject",
	UnsupportedCmsObject:  "UnsupportedCmsObject",
	UnsupportedCmsVersion: "UnsupportedCmsVersion",
	UnsupportedEncoding:   "UnsupportedEncoding",
	General:               "General",
}

// String returns the symbolic name of k.
func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "Kind(" + fmt.Sprint(int(k)) + ")"
}

// Error wraps an underlying cause with a Kind. Error never exposes the
// concrete type of its cause; callers branch on Kind(), not on type
// assertions against the wrapped error.
type Error struct {
	kind Kind
	err  error
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping cause. If cause is nil,
// Wrap returns nil.
func Wrap(kind Kind, cause error, msg string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.Wrap(cause, msg)}
}

// Kind returns the classification of e.
func (e *Error) Kind() Kind { return e.kind }

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err == nil {
		return e.kind.String()
	}
	return e.kind.String() + ": " + e.err.Error()
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As, without
// exposing e's own concrete type beyond the Kind accessor.
func (e *Error) Unwrap() error { return e.err }

// Format implements fmt.Formatter so that "%+v" yields a stack-annotated
// chain from the underlying github.com/pkg/errors cause.
func (e *Error) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: %+v", e.kind, e.err)
		return
	}
	fmt.Fprint(s, e.Error())
}

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, xerr.New(xerr.BerError, "")) style checks against a
// sentinel built purely from a Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.kind == e.kind
}

// Of reports the Kind of err if err is (or wraps) an *Error, and ok=true.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return 0, false
}

// Is reports whether err classifies as kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
