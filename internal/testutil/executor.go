// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/corext/corext/pkg/module"
)

type (
	// RecordingExecutor is a module.Executor that records every body it is asked
	// to run and returns a MapScope with "name" and "code" bound.
	RecordingExecutor struct {
		mu   sync.Mutex
		runs []module.Source
		// Fail makes Execute return an error for the named modules.
		Fail map[module.Name]error
	}

	// MapScope is a map-backed module.Scope.
	MapScope struct {
		mu      sync.Mutex
		vars    map[string]any
		exports map[string]any
	}
)

// Execute implements module.Executor.
func (e *RecordingExecutor) Execute(_ context.Context, src module.Source) (module.Scope, error) {
	e.mu.Lock()
	e.runs = append(e.runs, src)
	err := e.Fail[src.Name]
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	scope := NewMapScope(map[string]any{"name": string(src.Name), "code": src.Code})
	scope.exports["imports"] = len(src.Imports)
	return scope, nil
}

// Names returns the executed module names in execution order.
func (e *RecordingExecutor) Names() []module.Name {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]module.Name, len(e.runs))
	for i, r := range e.runs {
		names[i] = r.Name
	}
	return names
}

// Runs returns the recorded sources.
func (e *RecordingExecutor) Runs() []module.Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]module.Source(nil), e.runs...)
}

// NewMapScope creates a scope whose variables start as vars.
func NewMapScope(vars map[string]any) *MapScope {
	if vars == nil {
		vars = make(map[string]any)
	}
	return &MapScope{vars: vars, exports: make(map[string]any)}
}

// Exports implements module.Scope.
func (s *MapScope) Exports() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.exports)
}

// GetVar implements module.Scope.
func (s *MapScope) GetVar(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	return v, ok
}

// SetVar implements module.Scope.
func (s *MapScope) SetVar(name string, value any) error {
	if name == "" {
		return errors.New("empty variable name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
	return nil
}
