package asynchttp

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedCharset is wrapped by a [DecodeError] when a StringAs
	// charset names no known encoding.
	ErrUnsupportedCharset = errors.New("unsupported charset")

	// ErrHandlerShape is the sentinel of every [DefectError]: the eager and
	// streaming handler paths got mixed up.
	ErrHandlerShape = errors.New("handler shape mismatch")

	// ErrStreamConsumed is yielded by a response [Stream] ranged over twice.
	ErrStreamConsumed = errors.New("stream already consumed")

	// ErrMissingURI is returned by NewRequest when no target is given.
	ErrMissingURI = errors.New("request uri must not be nil")

	// ErrMissingResponseAs is returned by NewRequest when no consumption mode
	// is given.
	ErrMissingResponseAs = errors.New("response consumption mode must not be nil")
)

// DecodeError reports a response body that could not be materialized in the
// requested mode.
type DecodeError struct {
	Mode string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding body as %s: %v", e.Mode, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DefectError reports a programming error inside the bridge rather than a
// runtime condition. It is never retried.
type DefectError struct {
	Detail string
	Err    error
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *DefectError) Unwrap() error {
	return e.Err
}

func defect(format string, args ...any) *DefectError {
	return &DefectError{Detail: fmt.Sprintf(format, args...), Err: ErrHandlerShape}
}
