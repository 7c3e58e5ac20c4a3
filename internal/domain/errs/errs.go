// Package errs defines the business error taxonomy shared by the
// transactional orchestrators. Every error raised inside a transactional
// block aborts the whole operation; the HTTP layer translates kinds into
// status codes.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates business failures from each other and from
// infrastructure faults.
type Kind int

const (
	// Validation covers missing or malformed fields, bad units or types,
	// non-positive conversion factors and duplicate ids in a batch.
	Validation Kind = iota
	// InsufficientStock means a requested base quantity exceeds what is on
	// hand.
	InsufficientStock
	// Expired means one or more batch items are past their expiry date.
	Expired
	// NotFound means a referenced product, debtor or company does not exist.
	NotFound
	// Overpayment means a partial payment exceeds the computed total.
	Overpayment
	// Conflict is a storage-level transaction conflict; the one kind a caller
	// may retry verbatim.
	Conflict
	// Infrastructure is an unexpected storage or engine failure, surfaced
	// generically.
	Infrastructure
)

// Error is a classified business error carrying a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error without losing it.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind of err, defaulting to Infrastructure for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Infrastructure
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ExpiredItems builds an Expired error naming every expired line item in a
// batch, so the caller can report all of them at once.
func ExpiredItems(names []string) *Error {
	return New(Expired, "expired products: %s", strings.Join(names, ", "))
}
