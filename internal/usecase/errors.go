package usecase

import "fmt"

type ErrorCode string

const (
	// ErrorTransient marks an unreachable store or transport; the whole
	// operation is safe to re-invoke.
	ErrorTransient ErrorCode = "TRANSIENT"
	// ErrorPartialWrite marks a send that succeeded without its tracking
	// write (or the reverse); re-invoking would duplicate the send, so
	// these are surfaced for manual reconciliation instead.
	ErrorPartialWrite ErrorCode = "PARTIAL_WRITE"
	// ErrorDataIntegrity marks stored state outside the known shape, such
	// as a conversation stage out of range.
	ErrorDataIntegrity ErrorCode = "DATA_INTEGRITY"
	ErrorInternal      ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
