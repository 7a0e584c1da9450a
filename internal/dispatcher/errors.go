package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrTransport        = errors.New("delivery transport failure")
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrRejected         = errors.New("message rejected by remote")
	ErrInvalidMessage   = errors.New("invalid message")
)

// Error reports a dispatch that ended in failure.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether the final failure was a transport failure.
func (e *Error) Transient() bool {
	return IsTransient(e.Err)
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransport)
}

// classifyError maps an untyped delivery error to a sentinel. Network errors
// and timeouts are transient; anything unrecognized is treated as a rejection.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrInvalidRecipient) ||
		errors.Is(err, ErrRejected) ||
		errors.Is(err, ErrInvalidMessage) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	return fmt.Errorf("%w: %w", ErrRejected, err)
}
