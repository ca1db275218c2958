// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/corext/corext/pkg/module"
	"github.com/corext/corext/pkg/resource"
)

// Mux routes modules to an executor by resource type.
type Mux struct {
	engines  map[string]module.Executor
	fallback module.Executor
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{engines: make(map[string]module.Executor)}
}

// Default returns a Mux serving JavaScript with js and shell scripts with sh.
// Modules declared without a type or as octet-stream fall back to js, which
// matches the manifest format.
func Default(js *JS, sh *Shell) *Mux {
	m := NewMux()
	m.Handle(resource.TypeJavaScript, js)
	m.Handle(resource.TypeShell, sh)
	m.Fallback(js)
	return m
}

// Handle registers an executor for a resource type.
func (m *Mux) Handle(typ string, exec module.Executor) {
	m.engines[resource.CanonicalType(typ)] = exec
}

// Fallback sets the executor for untyped modules.
func (m *Mux) Fallback(exec module.Executor) {
	m.fallback = exec
}

// Types lists the registered types in sorted order.
func (m *Mux) Types() []string {
	return slices.Sorted(maps.Keys(m.engines))
}

// Execute implements module.Executor.
func (m *Mux) Execute(ctx context.Context, src module.Source) (module.Scope, error) {
	typ := resource.CanonicalType(src.Type)
	if exec, ok := m.engines[typ]; ok {
		return exec.Execute(ctx, src)
	}
	if m.fallback != nil && (typ == "" || typ == resource.TypeOctetStream) {
		return m.fallback.Execute(ctx, src)
	}
	return nil, fmt.Errorf("%w: %q", module.ErrNoExecutor, src.Type)
}
