package ssp

import "errors"

// ErrorKind names one of the five error kinds a caller can distinguish. It is
// attached to every *Error this package returns so callers can switch on
// kind rather than parse messages, in the manner of
// internal/storage.ErrKeyNotFound's single-sentinel style generalized to a
// small closed taxonomy.
type ErrorKind int

const (
	// KindInvalidArgument covers a null payload, an out-of-range row/table
	// id, or a zero size left unresolved by a SizeDeterminer.
	KindInvalidArgument ErrorKind = iota
	// KindNotInitialised covers a read or prefetch issued before the first
	// clock tick (age == 0).
	KindNotInitialised
	// KindResourceOverflow covers max_threads * peerCount exceeding the
	// reader-count capacity of the lock word.
	KindResourceOverflow
	// KindTransport wraps any error returned by the transport, verbatim.
	KindTransport
	// KindTimeout wraps a transport wait that exceeded its deadline.
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid-argument"
	case KindNotInitialised:
		return "not-initialised"
	case KindResourceOverflow:
		return "resource-overflow"
	case KindTransport:
		return "transport-error"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the error type every ssp operation returns on failure.
type Error struct {
	Kind  ErrorKind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind ErrorKind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapErr(kind ErrorKind, msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Package-level sentinels for the common invalid-argument / not-initialised
// / overflow cases.
var (
	ErrNotInitialised  = newErr(KindNotInitialised, "cache has not been clocked yet")
	ErrInvalidArgument = newErr(KindInvalidArgument, "invalid argument")
	ErrResourceOverflow = newErr(KindResourceOverflow, "max_threads * peer_count exceeds reader capacity")
)

// AsKind reports the ErrorKind of err, if it is (or wraps) an *Error.
func AsKind(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
