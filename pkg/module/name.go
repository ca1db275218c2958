// SPDX-License-Identifier: MPL-2.0

package module

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidName is returned when a module full name does not match the required format.
	ErrInvalidName = errors.New("invalid module name")

	namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

type (
	// Name is a dotted module full name, for example "app.ui.forms".
	Name string

	// InvalidNameError is returned when a Name does not match the required format.
	// It wraps ErrInvalidName for errors.Is() compatibility.
	InvalidNameError struct {
		Value Name
	}
)

// String returns the string representation of the Name.
func (n Name) String() string { return string(n) }

// Validate returns nil if the name is a non-empty sequence of dot-separated identifiers.
func (n Name) Validate() error {
	if !namePattern.MatchString(string(n)) {
		return &InvalidNameError{Value: n}
	}
	return nil
}

// Path returns the folder path for the name: dots become slashes.
func (n Name) Path() string {
	return strings.ReplaceAll(string(n), ".", "/")
}

// Error implements the error interface for InvalidNameError.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid module name %q: expected dot-separated identifiers", string(e.Value))
}

// Unwrap returns ErrInvalidName for errors.Is() compatibility.
func (e *InvalidNameError) Unwrap() error {
	return ErrInvalidName
}
