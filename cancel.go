package rescache

import (
	"context"
	"errors"
	"reflect"
	"time"
)

// effectiveCancel composes the per-fetch cancellation token as any-of(local
// fetch-timeout, parent). context.Context already behaves as the
// "channel-pair, any-of closes the aggregate when the first input closes"
// primitive described by the spec's design notes: WithTimeoutCause's Done
// channel closes on whichever of {its own deadline, its parent's Done}
// fires first, and context.Cause reports whichever actually fired.
func effectiveCancel(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeoutCause(parent, timeout, ErrFetchTimeout)
}

// normalizeCancelReason maps a cancellation cause into one of the two
// known cancellation errors. An ErrOperationAborted cause is returned
// unchanged; ErrFetchTimeout and context.DeadlineExceeded (a timeout-shaped
// reason) map to ErrFetchTimeout; context.Canceled, the cause of a caller
// cancelling its own context, maps to ErrOperationAborted. Any other cause
// that is a plain string-style error (constructed with
// errors.New/fmt.Errorf with no further typed wrapping) is read as a
// timeout per the spec's resolved ambiguity; anything else — a distinct
// typed error the caller attached to its own cancellation — is read as
// ErrOperationAborted, since only the caller could have produced it.
func normalizeCancelReason(cause error) error {
	switch {
	case cause == nil:
		return ErrFetchTimeout
	case errors.Is(cause, ErrOperationAborted):
		return ErrOperationAborted
	case errors.Is(cause, ErrFetchTimeout), errors.Is(cause, context.DeadlineExceeded):
		return ErrFetchTimeout
	case errors.Is(cause, context.Canceled):
		return ErrOperationAborted
	case isPlainStringError(cause):
		return ErrFetchTimeout
	default:
		return ErrOperationAborted
	}
}

func isPlainStringError(err error) bool {
	t := reflect.TypeOf(err)
	return t != nil && t.Kind() == reflect.Ptr && t.String() == "*errors.errorString"
}
