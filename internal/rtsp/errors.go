package rtsp

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection is a transport level connect, read or write failure.
	ErrConnection = errors.New("connection failure")
	// ErrUnsupportedOperation is returned when the server did not list the
	// method in its Public header. Nothing is written to the connection.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrAuthorization is returned when the server still answers 401 after
	// the digest retry.
	ErrAuthorization = errors.New("authorization failed")
	// ErrParse is returned when a required field is missing from a response.
	ErrParse = errors.New("parse failure")
	// ErrInvalidState is returned when an operation is not valid in the
	// current session state. Nothing is written to the connection.
	ErrInvalidState = errors.New("invalid session state")
	// ErrStatus is returned for non-success responses.
	ErrStatus = errors.New("unexpected status")
)

// Error describes a failed operation, with the raw response when one was read.
type Error struct {
	Method   Method
	Response string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rtsp %s: %v", e.Method, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError is a non-success response code.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrStatus, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

func newError(method Method, response string, err error) *Error {
	return &Error{Method: method, Response: response, Err: err}
}
