// Package brokererr defines the error taxonomy used across the broker:
// a numeric status code travels with every error so handlers can decide
// whether to close a connection, reply with an ERROR frame, or retry.
package brokererr

import (
	"errors"
	"fmt"

	"signalbroker/internal/protocol"
)

// CodeError pairs a status code with a message and an optional cause.
type CodeError struct {
	Code    int
	Message string
	Err     error
}

func (e *CodeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%d %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Err)
}

func (e *CodeError) Unwrap() error { return e.Err }

// New constructs a CodeError with no wrapped cause.
func New(code int, msg string) *CodeError { return &CodeError{Code: code, Message: msg} }

// Wrap attaches a status code and message to an underlying error.
func Wrap(code int, msg string, err error) *CodeError {
	if err == nil {
		return &CodeError{Code: code, Message: msg}
	}
	return &CodeError{Code: code, Message: msg, Err: err}
}

// WithMessage replaces the message of a CodeError while preserving its
// code and cause; non-CodeError values fall back to fmt.Errorf wrapping.
func WithMessage(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return &CodeError{Code: ce.Code, Message: msg, Err: ce.Err}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Code extracts the status code carried by err, defaulting to
// CodeInternal for errors outside this taxonomy and 0 for nil.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

// Status codes mirror the error_code field carried on the wire and are
// the same values protocol.StatusOK's siblings use, so a code never
// changes meaning between an ack's status and an ERROR frame's
// error_code.
const (
	CodeInternal     = protocol.StatusInternal
	CodeAuthFailed   = protocol.StatusUnauthorized
	CodeBadRequest   = protocol.StatusBadRequest
	CodeConflict     = protocol.StatusConflict
	CodeUnavailable  = protocol.StatusUnavailable
	CodeNotFound     = protocol.StatusNotFound
	CodeVersionStale = protocol.StatusBadRequest
)
