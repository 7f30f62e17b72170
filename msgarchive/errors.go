package msgarchive

import "errors"

var (
	// ErrArchive wraps any append/flush failure (log-and-resolve by
	// default; rejected only when ThrowOnError is set).
	ErrArchive = errors.New("msgarchive: append failed")
	// ErrProbeFailed is recorded (not returned) when the native-backend
	// writability probe fails at Init; the archive falls back to the
	// host-file backend.
	ErrProbeFailed = errors.New("msgarchive: native probe failed")
)
