package classifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Transient failures are retried; the rest fail the call immediately.
var (
	ErrTimeout      = errors.New("inference timed out")
	ErrRateLimited  = errors.New("inference rate limited")
	ErrUnavailable  = errors.New("inference unavailable")
	ErrMalformed    = errors.New("malformed classification output")
	ErrInvalidInput = errors.New("invalid classification input")
	ErrRejected     = errors.New("inference request rejected")
)

// Error reports a failed Classify call.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("classification failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether the final failure was a transient one.
func (e *Error) Transient() bool {
	return IsTransient(e.Err)
}

// IsTransient reports whether err is a timeout, rate limit, or availability failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable)
}

var (
	rateLimitedPattern = regexp.MustCompile(`\b429\b|rate limit|quota`)
	unavailablePattern = regexp.MustCompile(`\b50[0234]\b|connection refused|unavailable`)
)

// classifyError wraps an untyped provider error with the matching sentinel.
// Errors already carrying a sentinel pass through.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrRejected) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case rateLimitedPattern.MatchString(msg):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case unavailablePattern.MatchString(msg):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return fmt.Errorf("%w: %w", ErrRejected, err)
}
