package hostapi

import "errors"

var (
	// ErrNotFound reports an action/store lookup against an unknown ref.
	ErrNotFound = errors.New("hostapi: not found")
	// ErrActionNotFound reports execute() against an actionId the
	// target message doesn't carry.
	ErrActionNotFound = errors.New("hostapi: action not found")
	// ErrNonStringLogArg reports a ctx.api.log call with a non-string
	// key/value argument; the plugin-facing logger is string-only.
	ErrNonStringLogArg = errors.New("hostapi: log argument must be a string")
	// ErrTimeout reports sendTo exceeding its deadline.
	ErrTimeout = errors.New("hostapi: sendTo timed out")
	// ErrEmptyTarget reports sendTo called with an empty instance or command.
	ErrEmptyTarget = errors.New("hostapi: sendTo target/command must not be empty")
	// ErrSelfAddressed reports sendTo targeting the caller's own instance.
	ErrSelfAddressed = errors.New("hostapi: sendTo cannot target the caller's own instance")
)
