// SPDX-License-Identifier: MPL-2.0

package module

import (
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/corext/corext/pkg/resource"
)

type (
	// Registry defines modules on top of a resource.Registry. A module URL maps to the
	// same Request the resource registry hands out for it.
	Registry struct {
		mu       sync.Mutex
		res      *resource.Registry
		executor Executor
		logger   *log.Logger
		debug    bool
		byURL    map[string]*Module
		byName   map[Name]*Module
	}

	// RegistryOption configures a Registry.
	RegistryOption func(*Registry)
)

// WithExecutor sets the collaborator that evaluates module bodies.
func WithExecutor(e Executor) RegistryOption {
	return func(g *Registry) { g.executor = e }
}

// WithDebug selects non-minified URLs.
func WithDebug(debug bool) RegistryOption {
	return func(g *Registry) { g.debug = debug }
}

// WithRegistryLogger sets the logger. It defaults to the resource registry's logger.
func WithRegistryLogger(logger *log.Logger) RegistryOption {
	return func(g *Registry) { g.logger = logger }
}

// NewRegistry creates a module Registry backed by res.
func NewRegistry(res *resource.Registry, opts ...RegistryOption) *Registry {
	g := &Registry{
		res:    res,
		logger: res.Logger(),
		byURL:  make(map[string]*Module),
		byName: make(map[Name]*Module),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resources returns the underlying resource registry.
func (g *Registry) Resources() *resource.Registry { return g.res }

// Debug reports whether non-minified URLs are selected.
func (g *Registry) Debug() bool { return g.debug }

// Define returns the module for fullName, creating it on first use. The minified URL
// is fetched unless debug is on or minifiedURL is empty. Defining an existing name
// again returns the existing module; reusing a name for a different URL is an error.
func (g *Registry) Define(fullName Name, nonMinifiedURL, minifiedURL string, opts ...resource.RequestOption) (*Module, error) {
	if err := fullName.Validate(); err != nil {
		return nil, err
	}
	target := minifiedURL
	if g.debug || target == "" {
		target = nonMinifiedURL
	}
	if target == "" {
		return nil, fmt.Errorf("module %s: no URL given", fullName)
	}

	req, err := g.res.Get(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", fullName, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if m, ok := g.byName[fullName]; ok {
		if m.req != req {
			return nil, fmt.Errorf("module %s already defined for %s", fullName, m.req.URL())
		}
		return m, nil
	}
	if m, ok := g.byURL[req.URL()]; ok {
		return nil, fmt.Errorf("module %s: %s already belongs to module %s", fullName, req.URL(), m.fullName)
	}

	m := &Module{
		req:      req,
		reg:      g,
		fullName: fullName,
		nonMin:   nonMinifiedURL,
		min:      minifiedURL,
	}
	g.byURL[req.URL()] = m
	g.byName[fullName] = m
	g.logger.Debug("defined module", "module", fullName, "url", req.URL())
	return m, nil
}

// Lookup returns the module defined under fullName.
func (g *Registry) Lookup(fullName Name) (*Module, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.byName[fullName]
	return m, ok
}

// ByRequest returns the module backed by r.
func (g *Registry) ByRequest(r *resource.Request) (*Module, bool) {
	if r == nil {
		return nil, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.byURL[r.URL()]
	return m, ok
}

// Names returns every defined module name, sorted.
func (g *Registry) Names() []Name {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]Name, 0, len(g.byName))
	for n := range g.byName {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
