package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type ErrCode uint8

const (
	ErrCInternal       ErrCode = iota // 0: unclassified failure
	ErrCOutOfRange                    // 1: index is past the (probed or finalized) end
	ErrCConfiguration                 // 2: invalid or conflicting options
	ErrCProduction                    // 3: the source iterator failed while producing a shard
	ErrCEmptySource                   // 4: shard length estimation saw no items
	ErrCMisaligned                    // 5: shard start is not a multiple of the shard length
	ErrCLengthConflict                // 6: a different length was already finalized
	ErrCNoSource                      // 7: a shard is missing and there is no source to produce it
	ErrCUnbounded                     // 8: the sequence has no finite length
	ErrCCorrupt                       // 9: a shard file failed its integrity check
)

func (c ErrCode) String() string {
	switch c {
	case ErrCInternal:
		return "Internal"
	case ErrCOutOfRange:
		return "OutOfRange"
	case ErrCConfiguration:
		return "Configuration"
	case ErrCProduction:
		return "Production"
	case ErrCEmptySource:
		return "EmptySource"
	case ErrCMisaligned:
		return "Misaligned"
	case ErrCLengthConflict:
		return "LengthConflict"
	case ErrCNoSource:
		return "NoSource"
	case ErrCUnbounded:
		return "Unbounded"
	case ErrCCorrupt:
		return "Corrupt"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Error Type
// --------------------------------------------------------------------------

// Error wraps an error code, a message and an optional cause.
// Two errors match with errors.Is when their codes are equal, so callers
// compare against the sentinels below:
//
//	if errors.Is(err, common.ErrOutOfRange) { ... }
type Error struct {
	Code ErrCode
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("loadit (%s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("loadit (%s): %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewError creates a new error with the given code and formatted message.
func NewError(code ErrCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// WrapError creates a new error with the given code that wraps cause.
func WrapError(code ErrCode, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// OutOfRange is a shorthand for the most common error of the package.
func OutOfRange(idx int) *Error {
	return NewError(ErrCOutOfRange, "index %d out of range", idx)
}

// Sentinels for errors.Is
var (
	ErrOutOfRange     = &Error{Code: ErrCOutOfRange, Msg: "out of range"}
	ErrConfiguration  = &Error{Code: ErrCConfiguration, Msg: "invalid configuration"}
	ErrProduction     = &Error{Code: ErrCProduction, Msg: "shard production failed"}
	ErrEmptySource    = &Error{Code: ErrCEmptySource, Msg: "source is empty"}
	ErrMisaligned     = &Error{Code: ErrCMisaligned, Msg: "misaligned shard start"}
	ErrLengthConflict = &Error{Code: ErrCLengthConflict, Msg: "length already finalized"}
	ErrNoSource       = &Error{Code: ErrCNoSource, Msg: "no source"}
	ErrUnbounded      = &Error{Code: ErrCUnbounded, Msg: "unbounded sequence"}
	ErrCorrupt        = &Error{Code: ErrCCorrupt, Msg: "corrupt shard"}
)
