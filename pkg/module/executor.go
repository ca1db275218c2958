// SPDX-License-Identifier: MPL-2.0

package module

import (
	"context"
	"errors"
)

var (
	// ErrNotExecuted is returned by variable accessors before the module ran.
	ErrNotExecuted = errors.New("module not executed")
	// ErrNotReady is returned by Execute while the module is not yet ready.
	ErrNotReady = errors.New("module not ready")
	// ErrUnknownVar is returned when a scope has no binding with the requested name.
	ErrUnknownVar = errors.New("unknown variable")
	// ErrNoExecutor is returned when a module has no executor for its type.
	ErrNoExecutor = errors.New("no executor for module type")
	// ErrExecutionFailed wraps errors raised while evaluating a module body.
	ErrExecutionFailed = errors.New("module execution failed")
)

type (
	// Source is a module body handed to an Executor.
	Source struct {
		// Name is the module full name.
		Name Name
		// URL is the normalized URL the body was fetched from.
		URL string
		// Type is the declared resource type.
		Type string
		// Code is the body after handler transformations.
		Code string
		// Global selects evaluation in the executor's shared scope instead of an
		// isolated one.
		Global bool
		// Imports holds the scopes of already executed parent modules by full name.
		Imports map[Name]Scope
	}

	// Scope exposes the bindings of an executed module.
	Scope interface {
		// Exports returns the values the module published.
		Exports() map[string]any
		// GetVar reads a binding. It reports false when the name is not bound.
		GetVar(name string) (any, bool)
		// SetVar writes a binding.
		SetVar(name string, value any) error
	}

	// Executor evaluates module bodies.
	Executor interface {
		Execute(ctx context.Context, src Source) (Scope, error)
	}

	// ExecutorFunc adapts a function to the Executor interface.
	ExecutorFunc func(ctx context.Context, src Source) (Scope, error)
)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, src Source) (Scope, error) {
	return f(ctx, src)
}
