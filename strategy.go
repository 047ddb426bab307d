package rescache

import (
	"context"
	"errors"
	"net/http"
	"reflect"
)

// Provider is a stateless, named collaborator ExecuteStrategy fans a
// request through. The operation closure passed to ExecuteStrategy is
// generic over T so the same fan-through loop serves AddressProvider and
// GeocodingProvider alike (spec §9: "the strategy driver is generic over
// the operation closure (provider -> value)").
type Provider[T any] interface {
	Name() string
}

// NotFoundError lets a provider signal the business "no such entity"
// outcome explicitly, as an alternative to returning a nil value.
type NotFoundError struct {
	Provider string
	Reason   string
}

func (e *NotFoundError) Error() string {
	if e.Reason == "" {
		return "rescache: not found"
	}
	return "rescache: not found: " + e.Reason
}

// HTTPStatusError lets a provider surface a raw transport status code
// without the caller having to unwrap an HTTP client's own error type.
type HTTPStatusError struct {
	StatusCode int
	Err        error
}

func (e *HTTPStatusError) Error() string { return e.Err.Error() }
func (e *HTTPStatusError) Unwrap() error { return e.Err }

// isNilValue reports whether val is the nil form of a pointer-shaped T
// (pointer, interface, map, slice, chan, or func), the Go rendering of the
// source's "returns null" not-found signal.
func isNilValue(val any) bool {
	if val == nil {
		return true
	}
	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}

func isNotFoundOutcome(err error) bool {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return true
	}
	var hs *HTTPStatusError
	if errors.As(err, &hs) {
		return hs.StatusCode == http.StatusNotFound
	}
	return false
}

// ExecuteStrategy implements spec §4.5: it iterates providers in order,
// classifying each outcome. A returned value short-circuits immediately. A
// nil value, a NotFoundError, or a 404-shaped HTTPStatusError count as
// not-found and move to the next provider. ErrFetchTimeout re-raises
// immediately without trying further providers. Any other error marks the
// run as degraded and is remembered as the last system error.
//
// After the loop: a system error dominates — even if every other provider
// merely returned not-found, one provider's transport failure means the
// not-found verdicts from the others are unreliable, so the whole call
// raises *ProviderFailure rather than caching a possibly-wrong negative
// result. Only when every provider agreed not-found, with no system
// failures anywhere, does the call raise ErrNotFound — the only outcome a
// caller's error_mapper should translate into a cacheable negative
// envelope.
func ExecuteStrategy[T any](
	ctx context.Context,
	providers []Provider[T],
	call func(context.Context, Provider[T]) (T, error),
) (T, error) {
	var zero T
	var lastErr error
	var lastProvider string
	notFoundCount := 0
	hasSystemError := false

	for _, p := range providers {
		if ctx.Err() != nil {
			return zero, ErrFetchTimeout
		}

		val, err := call(ctx, p)
		switch {
		case err == nil && isNilValue(val):
			notFoundCount++
		case err == nil:
			return val, nil
		case isNotFoundOutcome(err):
			notFoundCount++
		case errors.Is(err, ErrFetchTimeout):
			return zero, ErrFetchTimeout
		default:
			hasSystemError = true
			lastErr = err
			lastProvider = p.Name()
		}
	}

	switch {
	case hasSystemError:
		return zero, &ProviderFailure{Provider: lastProvider, Err: lastErr}
	case notFoundCount == len(providers):
		return zero, ErrNotFound
	default:
		// Unreachable in practice: kept as a safety net per spec §4.5.
		return zero, &ProviderFailure{Err: errors.New("rescache: no provider produced a result")}
	}
}
