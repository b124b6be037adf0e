package transport

import "errors"

// ErrTimeout is returned by NotifyWait and may be returned by any
// transport operation that times out.
var ErrTimeout = errors.New("transport: operation timed out")

// Error wraps a failure surfaced by the transport so callers can distinguish
// transport failures from core invariant violations: any failure from the
// underlying one-sided substrate is propagated verbatim, wrapped only to
// name which operation and peer it came from.
type Error struct {
	Op    string
	Peer  int
	Cause error
}

func (e *Error) Error() string {
	return "transport: " + e.Op + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// Wrap constructs an *Error, or returns nil if cause is nil.
func Wrap(op string, peer int, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Op: op, Peer: peer, Cause: cause}
}
