// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport is the sentinel for network and file transfer failures.
	ErrTransport = errors.New("transport failure")
	// ErrTimeout is returned when the transfer deadline expires.
	ErrTimeout = errors.New("request timed out")
	// ErrAborted is returned when Abort cancels an in-flight transfer.
	ErrAborted = errors.New("request aborted")
	// ErrTypeMismatch is the sentinel wrapped by TypeMismatchError.
	ErrTypeMismatch = errors.New("resource type mismatch")
	// ErrUnknownType is returned when no type was given and none can be inferred.
	ErrUnknownType = errors.New("cannot infer resource type")
	// ErrHandlerFailed wraps errors returned (or panics raised) by chain handlers.
	ErrHandlerFailed = errors.New("handler failed")
)

type (
	// LoadError is reported when a request's error chain is exhausted without recovery.
	// It carries the full ordered message log of the request.
	LoadError struct {
		URL string
		Log []string
		Err error
	}

	// UsageError indicates misuse of the API (for example a nil handler). It is raised
	// with panic because it is a programming mistake, not a runtime failure.
	UsageError struct {
		Op  string
		Msg string
	}

	// HTTPStatusError is returned by transports for responses outside 2xx and 304.
	HTTPStatusError struct {
		URL        string
		StatusCode int
	}

	// TypeMismatchError is returned when the received content type differs from the declared one.
	TypeMismatchError struct {
		URL      string
		Declared string
		Received string
	}
)

// Error implements the error interface for LoadError.
func (e *LoadError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "resource %s failed: %v", e.URL, e.Err)
	if len(e.Log) > 0 {
		sb.WriteString("\nmessage log:")
		for i, line := range e.Log {
			fmt.Fprintf(&sb, "\n  %d. %s", i+1, line)
		}
	}
	return sb.String()
}

// Unwrap returns the error that exhausted the chain.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Error implements the error interface for UsageError.
func (e *UsageError) Error() string {
	return fmt.Sprintf("resource: %s: %s", e.Op, e.Msg)
}

// Error implements the error interface for HTTPStatusError.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// Unwrap returns ErrTransport for errors.Is() compatibility.
func (e *HTTPStatusError) Unwrap() error {
	return ErrTransport
}

// Error implements the error interface for TypeMismatchError.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected type %q, received %q", e.URL, e.Declared, e.Received)
}

// Unwrap returns ErrTypeMismatch for errors.Is() compatibility.
func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

func usage(op, msg string) *UsageError {
	return &UsageError{Op: op, Msg: msg}
}
