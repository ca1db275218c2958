// SPDX-License-Identifier: MPL-2.0

package module

import (
	"context"
	"fmt"
	"maps"

	"github.com/corext/corext/pkg/resource"
)

// Module is named executable code backed by a resource.Request.
type Module struct {
	req      *resource.Request
	reg      *Registry
	fullName Name
	nonMin   string
	min      string

	scope     Scope
	global    bool
	executing bool
}

// Core implements resource.Loadable.
func (m *Module) Core() *resource.Request { return m.req }

// FullName returns the dotted module name.
func (m *Module) FullName() Name { return m.fullName }

// NonMinifiedURL returns the debug URL as declared.
func (m *Module) NonMinifiedURL() string { return m.nonMin }

// MinifiedURL returns the release URL as declared; it may be empty.
func (m *Module) MinifiedURL() string { return m.min }

// URL returns the URL actually fetched.
func (m *Module) URL() string { return m.req.URL() }

// Executed reports whether the body ran.
func (m *Module) Executed() bool { return m.scope != nil }

// Global reports whether the body ran in the shared scope.
func (m *Module) Global() bool { return m.global }

// Exports returns a copy of the values the module published, or nil before execution.
func (m *Module) Exports() map[string]any {
	if m.scope == nil {
		return nil
	}
	return maps.Clone(m.scope.Exports())
}

// GetVar reads a binding from the executed module's scope.
func (m *Module) GetVar(name string) (any, error) {
	if m.scope == nil {
		return nil, fmt.Errorf("%s: %w", m.fullName, ErrNotExecuted)
	}
	v, ok := m.scope.GetVar(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", m.fullName, ErrUnknownVar, name)
	}
	return v, nil
}

// SetVar writes a binding into the executed module's scope.
func (m *Module) SetVar(name string, value any) error {
	if m.scope == nil {
		return fmt.Errorf("%s: %w", m.fullName, ErrNotExecuted)
	}
	return m.scope.SetVar(name, value)
}

// Execute runs the module body once. Ready parent modules execute first; parents that
// are plain resources are skipped. With useGlobalScope the body is evaluated in the
// executor's shared scope, otherwise in an isolated one. Repeated calls are no-ops.
// Execute must be called on the event loop goroutine, typically from a Ready handler.
func (m *Module) Execute(ctx context.Context, useGlobalScope bool) error {
	if m.scope != nil || m.executing {
		return nil
	}
	if s := m.req.Status(); s < resource.StatusReady {
		return fmt.Errorf("%s: %w (status %s)", m.fullName, ErrNotReady, s)
	}

	m.executing = true
	defer func() { m.executing = false }()

	imports := make(map[Name]Scope)
	for _, p := range m.req.Parents() {
		parent, ok := m.reg.ByRequest(p)
		if !ok || p.Status() < resource.StatusReady {
			continue
		}
		if err := parent.Execute(ctx, useGlobalScope); err != nil {
			return fmt.Errorf("executing dependency of %s: %w", m.fullName, err)
		}
		if parent.scope != nil {
			imports[parent.fullName] = parent.scope
		}
	}

	exec := m.reg.executor
	if exec == nil {
		return fmt.Errorf("%s (%s): %w", m.fullName, m.req.Type(), ErrNoExecutor)
	}
	src := Source{
		Name:    m.fullName,
		URL:     m.req.URL(),
		Type:    m.req.Type(),
		Code:    code(m.req),
		Global:  useGlobalScope,
		Imports: imports,
	}
	scope, err := exec.Execute(ctx, src)
	if err != nil {
		m.reg.logger.Error("module execution failed", "module", m.fullName, "err", err)
		return fmt.Errorf("executing %s: %w: %w", m.fullName, ErrExecutionFailed, err)
	}
	if scope == nil {
		scope = emptyScope{}
	}
	m.scope = scope
	m.global = useGlobalScope
	m.req.MarkExecuted("module body executed")
	m.reg.logger.Debug("module executed", "module", m.fullName, "global", useGlobalScope)
	return nil
}

func code(r *resource.Request) string {
	switch v := r.TransformedData().(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return string(r.Data())
	}
}

type emptyScope struct{}

func (emptyScope) Exports() map[string]any         { return nil }
func (emptyScope) GetVar(string) (any, bool)       { return nil, false }
func (emptyScope) SetVar(name string, _ any) error { return fmt.Errorf("%w %q", ErrUnknownVar, name) }

// Reload drops the executed scope and reloads the request, so the next Execute
// evaluates the fresh body.
func (m *Module) Reload(cascade bool) *Module {
	m.scope = nil
	m.global = false
	m.req.Reload(cascade)
	return m
}
