// Package clierr carries process exit codes through ordinary error returns.
package clierr

import (
	"errors"
	"fmt"
)

// Exit codes used by dtscheck.
const (
	ExitAborted  = 1 // infrastructure failure, no trustworthy report
	ExitFindings = 2 // run completed with findings and --fail-on-findings
)

// ExitCoder is an error that selects the process exit code.
type ExitCoder interface {
	error
	ExitCode() int
}

// ExitError is an error with an explicit exit code. It unwraps to its cause.
type ExitError struct {
	code  int
	msg   string
	cause error
}

func (e *ExitError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.cause)
}

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int { return e.code }

func (e *ExitError) Unwrap() error { return e.cause }

// New creates an ExitError with a message.
func New(code int, msg string) error {
	return &ExitError{code: normalize(code), msg: msg}
}

// Newf is a formatted variant of New.
func Newf(code int, format string, args ...any) error {
	return &ExitError{code: normalize(code), msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an ExitError around cause.
func Wrap(code int, msg string, cause error) error {
	if cause == nil {
		return New(code, msg)
	}
	return &ExitError{code: normalize(code), msg: msg, cause: cause}
}

// ExitCodeOf extracts the exit code of err: 0 for nil, 1 unless err carries
// another code.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ec ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return ExitAborted
}

// Silent reports whether err only carries an exit code and has nothing to
// print beyond what the run already wrote.
func Silent(err error) bool {
	var ee *ExitError
	return errors.As(err, &ee) && ee.code == ExitFindings && ee.cause == nil
}

func normalize(code int) int {
	if code <= 0 {
		return ExitAborted
	}
	return code
}
