// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"errors"
	"fmt"
)

const (
	// StatusPending indicates the request was created but Start() not called.
	StatusPending Status = iota
	// StatusError is absorbing unless an error handler recovers.
	StatusError
	// StatusLoading indicates the transfer was issued and has not completed.
	StatusLoading
	// StatusLoaded indicates the payload arrived and the handler chain is draining.
	StatusLoaded
	// StatusWaiting indicates the handler chain drained and parents are not all ready.
	StatusWaiting
	// StatusReady indicates the chain drained and every parent is ready.
	StatusReady
	// StatusExecuted is set by modules once their body ran.
	StatusExecuted
)

// ErrInvalidStatus is returned when a Status value is not one of the defined states.
var ErrInvalidStatus = errors.New("invalid status")

type (
	// Status is the lifecycle state of a Request. Values only move forward,
	// except for StatusError and an explicit Reload.
	Status int32

	// InvalidStatusError is returned when a Status value is not recognized.
	// It wraps ErrInvalidStatus for errors.Is() compatibility.
	InvalidStatusError struct {
		Value Status
	}
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusError:
		return "error"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusWaiting:
		return "waiting"
	case StatusReady:
		return "ready"
	case StatusExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// Error implements the error interface for InvalidStatusError.
func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %d (valid: 0=pending, 1=error, 2=loading, 3=loaded, 4=waiting, 5=ready, 6=executed)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidStatusError) Unwrap() error {
	return ErrInvalidStatus
}

// Validate returns nil if the Status is one of the defined states.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusError, StatusLoading, StatusLoaded, StatusWaiting, StatusReady, StatusExecuted:
		return nil
	default:
		return &InvalidStatusError{Value: s}
	}
}

// IsSettled reports whether the request reached Ready (or went beyond it).
func (s Status) IsSettled() bool {
	return s == StatusReady || s == StatusExecuted
}
