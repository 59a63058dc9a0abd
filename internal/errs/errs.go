// Package errs defines the error taxonomy shared by the scanner, hasher,
// cache, and action executor: InputError, IoError, CacheError, ActionError,
// and Cancelled. Only InputError and a twice-failed CacheError rebuild are
// meant to surface as fatal to a caller; everything else is recovered by
// the component that raised it and reported as a warning alongside
// results.
package errs

import "errors"

// Kind classifies an error for callers that need to branch on it (e.g. the
// CLI mapping errors to process exit codes).
type Kind string

const (
	KindInput     Kind = "input"
	KindIO        Kind = "io"
	KindCache     Kind = "cache"
	KindAction    Kind = "action"
	KindCancelled Kind = "cancelled"
)

// Error wraps an underlying error with a Kind so errors.As can recover it.
type Error struct {
	Kind Kind
	Op   string // what was being attempted, e.g. "stat", "move", "rebuild cache"
	Path string // file or resource the error concerns, if any
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func Input(op string, err error) error {
	return &Error{Kind: KindInput, Op: op, Err: err}
}

func IO(op, path string, err error) error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

func Cache(op string, err error) error {
	return &Error{Kind: KindCache, Op: op, Err: err}
}

func Action(op, path string, err error) error {
	return &Error{Kind: KindAction, Op: op, Path: path, Err: err}
}

// ErrCancelled is returned (wrapped) when an operation stops because its
// context was cancelled — an orderly termination, not a failure.
var ErrCancelled = errors.New("cancelled")

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
