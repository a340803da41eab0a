package tapi

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a bad slot, an unmapped event kind, or a
	// missing required argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOutOfMemory reports that the in-flight handler budget is exhausted.
	ErrOutOfMemory = errors.New("handler budget exhausted")
	// ErrIO reports that no channel was available or submission failed.
	ErrIO = errors.New("transport i/o failure")
	// ErrRemoteFault wraps an application-level fault returned by the service.
	ErrRemoteFault = errors.New("remote fault")
	// ErrProtocolMismatch reports a reply whose signature differs from the
	// one the operation expects.
	ErrProtocolMismatch = errors.New("protocol mismatch")
	// ErrNotFound reports an unknown or already removed watch id.
	ErrNotFound = errors.New("watch not found")
	// ErrCanceled completes handlers still in flight when the context stops.
	ErrCanceled = errors.New("canceled by context shutdown")
	// ErrClosed is returned when submitting work to a stopped context.
	ErrClosed = errors.New("context closed")
)

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
