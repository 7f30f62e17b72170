package message

import "errors"

// Validation/propagation errors, per spec §7's ValidationError kind.
var (
	ErrValidation         = errors.New("message: validation failed")
	ErrMissingField       = errors.New("message: required field missing")
	ErrUnknownEnum        = errors.New("message: unknown enumerated value")
	ErrImmutableField     = errors.New("message: immutable field change rejected")
	ErrInvalidPatch       = errors.New("message: invalid patch")
	ErrInvalidAttachment  = errors.New("message: invalid attachment type")
	ErrInvalidAction      = errors.New("message: invalid action type")
	ErrTimestampOutOfRange = errors.New("message: timestamp implausible")
)
