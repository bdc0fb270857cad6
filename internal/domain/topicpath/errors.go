package topicpath

import (
	"errors"
	"fmt"
)

// Code identifies why a topic path was rejected. The values are stable wire codes.
type Code string

// Topic path error codes.
const (
	CodeEmpty            Code = "TOPIC_PATH_EMPTY"
	CodeInvalidFormat    Code = "TOPIC_PATH_INVALID_FORMAT"
	CodeInvalidStructure Code = "TOPIC_PATH_INVALID_STRUCTURE"
	CodeNonCanonical     Code = "TOPIC_PATH_NON_CANONICAL"
)

var (
	// ErrEmpty signals an empty or whitespace-only input.
	ErrEmpty = errors.New("topic path is empty")
	// ErrInvalidFormat signals characters outside [a-zA-Z0-9._] or a malformed label sequence.
	ErrInvalidFormat = errors.New("topic path has invalid format")
	// ErrInvalidStructure signals an empty label (leading, trailing or consecutive dots).
	ErrInvalidStructure = errors.New("topic path has invalid structure")
	// ErrNonCanonical signals a well-formed path that is not lowercase.
	ErrNonCanonical = errors.New("topic path is not canonical")
)

// Error is returned by Parse and Canonicalize.
type Error struct {
	Code  Code
	Input string
	msg   string
}

func newError(code Code, input, format string, args ...any) *Error {
	return &Error{Code: code, Input: input, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return e.msg }

// Unwrap exposes the sentinel matching the error code.
func (e *Error) Unwrap() error {
	switch e.Code {
	case CodeEmpty:
		return ErrEmpty
	case CodeInvalidFormat:
		return ErrInvalidFormat
	case CodeInvalidStructure:
		return ErrInvalidStructure
	case CodeNonCanonical:
		return ErrNonCanonical
	default:
		return nil
	}
}

// Is makes a structural failure also match ErrInvalidFormat: an empty label
// is a format violation, the structure code only narrows it down.
func (e *Error) Is(target error) bool {
	return e.Code == CodeInvalidStructure && target == ErrInvalidFormat
}
