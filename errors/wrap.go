package errors

import (
	"errors"
)

// AsDispense extracts a *DispenseError from an error chain, or nil.
func AsDispense(err error) *DispenseError {
	var de *DispenseError
	if errors.As(err, &de) {
		return de
	}
	return nil
}

// KindOf returns the kind carried by err, or the fallback when err is not a
// DispenseError.
func KindOf(err error, fallback Kind) Kind {
	if de := AsDispense(err); de != nil {
		return de.Kind
	}
	return fallback
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	de := AsDispense(err)
	return de != nil && de.Kind == kind
}
