package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeSuspectedBlock ErrorType = "suspected_block"
	ErrorTypeTransport      ErrorType = "transport"
	ErrorTypeUnexpected     ErrorType = "unexpected"
)

// Error represents an extraction error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Transport wraps a browser or process level fault
func Transport(err error) *Error {
	msg := "browser fault"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Type: ErrorTypeTransport, Message: msg, Err: err}
}

// NotFound reports a target page that does not exist
func NotFound(msg string) *Error {
	return &Error{Type: ErrorTypeNotFound, Message: msg, Code: 404}
}

// Block reports a suspected anti-automation block
func Block(msg string) *Error {
	return &Error{Type: ErrorTypeSuspectedBlock, Message: msg}
}

// Unexpected wraps any fault outside the known taxonomy
func Unexpected(err error) *Error {
	msg := "unknown fault"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Type: ErrorTypeUnexpected, Message: msg, Err: err}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnexpected
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnexpected
}

// IsTransport reports whether err is a transport fault
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	return TypeOf(err) == ErrorTypeTransport
}

// IsRetryable reports whether repeating the same low-level operation may
// succeed. Transport faults qualify, such as a browser that failed to start
// or a dropped DevTools connection. A suspected block qualifies once a fresh
// session is in place. A missing page or an unknown fault does not.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransport, ErrorTypeSuspectedBlock:
		return true
	default:
		return false
	}
}
