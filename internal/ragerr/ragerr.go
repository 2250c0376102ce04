// Package ragerr defines the error taxonomy shared by every RAG component.
// Components translate provider-specific failures into one of these kinds so
// callers can branch on Kind with errors.Is while %w-wrapping keeps the root
// cause around for logs.
package ragerr

import (
	"errors"
	"fmt"
)

// Kind is a closed set of semantic error categories.
type Kind string

const (
	InvalidInput      Kind = "invalid_input"
	DecodeError       Kind = "decode_error"
	UnsupportedFormat Kind = "unsupported_format"
	NotFound          Kind = "not_found"
	Timeout           Kind = "timeout"
	Unavailable       Kind = "unavailable"
	GenerationError   Kind = "generation_error"
	RetrievalError    Kind = "retrieval_error"
	Cancelled         Kind = "cancelled"
	Internal          Kind = "internal"
)

// sentinels support errors.Is(err, ragerr.ErrNotFound) style checks without
// callers needing to unwrap to *Error and compare Kind by hand.
var (
	ErrInvalidInput      = errors.New(string(InvalidInput))
	ErrDecodeError       = errors.New(string(DecodeError))
	ErrUnsupportedFormat = errors.New(string(UnsupportedFormat))
	ErrNotFound          = errors.New(string(NotFound))
	ErrTimeout           = errors.New(string(Timeout))
	ErrUnavailable       = errors.New(string(Unavailable))
	ErrGenerationError   = errors.New(string(GenerationError))
	ErrRetrievalError    = errors.New(string(RetrievalError))
	ErrCancelled         = errors.New(string(Cancelled))
	ErrInternal          = errors.New(string(Internal))
)

var sentinelByKind = map[Kind]error{
	InvalidInput:      ErrInvalidInput,
	DecodeError:       ErrDecodeError,
	UnsupportedFormat: ErrUnsupportedFormat,
	NotFound:          ErrNotFound,
	Timeout:           ErrTimeout,
	Unavailable:       ErrUnavailable,
	GenerationError:   ErrGenerationError,
	RetrievalError:    ErrRetrievalError,
	Cancelled:         ErrCancelled,
	Internal:          ErrInternal,
}

// Error is a typed-kind error: Op names the failing operation, Kind is the
// taxonomy bucket, and Err (if set) is the wrapped root cause.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return sentinelByKind[e.Kind]
}

// Is lets errors.Is(err, ragerr.ErrTimeout) match regardless of Op/wrapped cause.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinelByKind[e.Kind]
	return ok && sentinel == target
}

// New builds an *Error with no wrapped cause.
func New(op string, kind Kind) *Error {
	return &Error{Op: op, Kind: kind}
}

// Wrap builds an *Error wrapping err under the given op/kind. Wrap(op, kind, nil)
// returns nil so it is safe to use as `return ragerr.Wrap(op, kind, err)` guards.
func Wrap(op string, kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error, otherwise
// returns Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind, whether or not it is an *Error.
func Is(err error, kind Kind) bool {
	sentinel, ok := sentinelByKind[kind]
	if !ok {
		return false
	}
	return errors.Is(err, sentinel)
}
