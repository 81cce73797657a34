// Package rterr defines the error codes returned by the task submission
// engine.
package rterr

import (
	"github.com/brickingsoft/errors"
)

// Codes returned to callers of the engine.
var (
	ErrInvalidValue             = errors.Define("invalid value")
	ErrStreamFull               = errors.Define("stream full")
	ErrQueueFull                = errors.Define("task queue full")
	ErrStreamEmpty              = errors.Define("stream empty")
	ErrDrv                      = errors.Define("driver error")
	ErrSyncTimeout              = errors.Define("stream sync timeout")
	ErrContextAbort             = errors.Define("context aborted")
	ErrStreamAbort              = errors.Define("stream aborted")
	ErrDeviceAbort              = errors.Define("device down")
	ErrStreamCaptureExit        = errors.Define("stream capture exited")
	ErrStreamInvalid            = errors.Define("stream invalid")
	ErrStreamTaskGroupInterrupt = errors.Define("stream task group interrupted")
	ErrCaptureInvalidated       = errors.Define("capture invalidated")
	ErrStreamNotCapturing       = errors.Define("stream not capturing")
	ErrResourceExhausted        = errors.Define("resource exhausted")
	ErrTimeout                  = errors.Define("timeout")
	ErrRepeatedInit             = errors.Define("repeated init")
)

const (
	metaPkgKey = "pkg"
	metaOpKey  = "op"
)

// New builds an error of the given code, annotated with the package and
// operation that produced it. A non-nil cause is wrapped.
func New(code error, pkg, op string, cause error) error {
	if cause == nil {
		return errors.From(
			code,
			errors.WithMeta(metaPkgKey, pkg),
			errors.WithMeta(metaOpKey, op),
		)
	}

	return errors.From(
		code,
		errors.WithMeta(metaPkgKey, pkg),
		errors.WithMeta(metaOpKey, op),
		errors.WithWrap(cause),
	)
}

// Is reports whether err carries the given code.
func Is(err, code error) bool {
	return errors.Is(err, code)
}

// IsAbort reports whether err is one of the abort codes. Abort codes short
// circuit every wait and retry.
func IsAbort(err error) bool {
	return errors.Is(err, ErrContextAbort) ||
		errors.Is(err, ErrStreamAbort) ||
		errors.Is(err, ErrDeviceAbort)
}

// IsRecoverable reports whether the caller may retry the failed operation
// later without tearing anything down.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrStreamFull) ||
		errors.Is(err, ErrQueueFull) ||
		errors.Is(err, ErrSyncTimeout)
}
