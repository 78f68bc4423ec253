// Package errs defines the error taxonomy shared by the harness packages.
//
// Callers match categories with errors.Is; the originating cause stays
// reachable through the wrap chain.
package errs

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrIO reports an unreadable input or a failed artifact write.
	ErrIO = errors.New("io error")

	// ErrRange reports a size or offset that is inconsistent with the data.
	ErrRange = errors.New("range error")
)

// IO wraps cause as an ErrIO with a short operation description.
func IO(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, cause)
}

// Rangef returns an ErrRange with a formatted message.
func Rangef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRange, fmt.Sprintf(format, args...))
}
