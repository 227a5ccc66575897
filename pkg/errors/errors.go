package errors

import (
	stdErrors "errors"
)

func AsPoolError(err error) (*PoolError, bool) {
	var pe *PoolError
	if stdErrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func AsHandleError(err error) (*HandleError, bool) {
	var he *HandleError
	if stdErrors.As(err, &he) {
		return he, true
	}
	return nil, false
}

func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stdErrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code, regardless of which
// concrete error type produced it.
func HasCode(err error, code ErrorCode) bool {
	if pe, ok := AsPoolError(err); ok && pe.Code() == code {
		return true
	}
	if he, ok := AsHandleError(err); ok && he.Code() == code {
		return true
	}
	if ve, ok := AsValidationError(err); ok && ve.Code() == code {
		return true
	}
	return false
}
