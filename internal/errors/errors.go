// Package errors defines the typed errors dailyrun exits with.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitConfigError  = 2
	ExitTimezone     = 3
	ExitPlatform     = 4
)

// Error carries a process exit code alongside the usual message and cause.
type Error struct {
	Code    int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code int, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Config reports an invalid or unreadable configuration.
func Config(message string, cause error) *Error {
	return Wrap(ExitConfigError, message, cause)
}

// Timezone reports a zone that could not be loaded, which on most hosts
// means the tz database is not installed.
func Timezone(name string, cause error) *Error {
	return Wrap(ExitTimezone,
		fmt.Sprintf("time zone %q is unavailable; install the system tzdata package to use --schedule", name),
		cause)
}

// Platform reports a failure returned by the sandbox platform.
func Platform(op string, cause error) *Error {
	return Wrap(ExitPlatform, op, cause)
}

// ExitCode returns the exit code for err. Untyped errors map to
// ExitGeneralError and nil maps to ExitSuccess.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ExitGeneralError
}

// Is reports whether err carries the given exit code anywhere in its chain.
func Is(err error, code int) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Code == code
}
