package timebox

import "errors"

var (
	// ErrNotFound is returned when a referenced entity must exist and doesn't.
	ErrNotFound = errors.New("not found")
	// ErrNoActiveSession is returned by timer mutations that require a
	// running or paused session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrConstraint wraps storage-level integrity failures (foreign keys,
	// check constraints).
	ErrConstraint = errors.New("constraint violation")
)

type ErrorKind uint8

const (
	KindIO ErrorKind = iota
	KindNotFound
	KindNoActiveSession
	KindConstraint
)

// KindOf classifies an error into the closed error-kind set. Anything not
// matching a sentinel is treated as an I/O failure.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNoActiveSession):
		return KindNoActiveSession
	case errors.Is(err, ErrConstraint):
		return KindConstraint
	default:
		return KindIO
	}
}
