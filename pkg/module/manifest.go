// SPDX-License-Identifier: MPL-2.0

package module

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"unicode"

	"github.com/corext/corext/internal/dag"
	"github.com/corext/corext/pkg/resource"
)

// DefaultManifestFile is the file name a dependency's folder path ends with.
const DefaultManifestFile = "manifest.js"

type (
	// Manifest is a Module whose body declares further module dependencies. The
	// declared manifests become its parents before it can become ready.
	Manifest struct {
		*Module
		resolver *Resolver
		deps     []Name
	}

	// Resolver discovers manifests transitively and keeps their dependency graph.
	// Like requests, it must only be used from the event loop goroutine.
	Resolver struct {
		modules      *Registry
		manifestFile string
		extractors   map[string]DependencyExtractor
		fallback     DependencyExtractor
		manifests    map[string]*Manifest
		graph        *dag.Graph
	}

	// ResolverOption configures a Resolver.
	ResolverOption func(*Resolver)
)

// WithManifestFile sets the file name appended to dependency folder paths.
func WithManifestFile(name string) ResolverOption {
	return func(rs *Resolver) {
		if name != "" {
			rs.manifestFile = name
		}
	}
}

// WithExtractor sets the extractor used for manifests of the given resource type.
func WithExtractor(typ string, e DependencyExtractor) ResolverOption {
	return func(rs *Resolver) { rs.extractors[resource.CanonicalType(typ)] = e }
}

// NewResolver creates a Resolver that defines manifests in modules.
// JavaScript manifests use CallExtractor, shell manifests DirectiveExtractor.
func NewResolver(modules *Registry, opts ...ResolverOption) *Resolver {
	rs := &Resolver{
		modules:      modules,
		manifestFile: DefaultManifestFile,
		extractors: map[string]DependencyExtractor{
			resource.TypeJavaScript: CallExtractor{},
			resource.TypeShell:      DirectiveExtractor{},
		},
		fallback:  CallExtractor{},
		manifests: make(map[string]*Manifest),
		graph:     dag.New(),
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// Modules returns the module registry manifests are defined in.
func (rs *Resolver) Modules() *Registry { return rs.modules }

// ManifestPath returns the manifest path for a dependency name: "~/" followed by the
// name with dots as slashes, then the manifest file name.
func (rs *Resolver) ManifestPath(dep Name) string {
	return "~/" + dep.Path() + "/" + rs.manifestFile
}

// GetManifest returns the manifest at p, creating it if needed. The manifest scans
// its body for dependencies as the first entry of its handler chain. It is not
// started; call Start on its Core.
func (rs *Resolver) GetManifest(p string) (*Manifest, error) {
	return rs.getManifest(p, "")
}

func (rs *Resolver) getManifest(p string, name Name) (*Manifest, error) {
	res := rs.modules.Resources()
	key, err := res.Normalize(p)
	if err != nil {
		return nil, err
	}
	if m, ok := rs.manifests[key]; ok {
		return m, nil
	}

	var mod *Module
	if req, ok := res.Lookup(key); ok {
		mod, _ = rs.modules.ByRequest(req)
	}
	if mod == nil {
		if name == "" {
			name = manifestName(p, rs.manifestFile)
		}
		mod, err = rs.modules.Define(name, key, "")
		if err != nil {
			return nil, err
		}
	}

	m := &Manifest{Module: mod, resolver: rs}
	rs.manifests[key] = m
	rs.graph.AddNode(key)
	mod.Core().Then(m.scan, nil)
	return m, nil
}

// Lookup returns a known manifest by path.
func (rs *Resolver) Lookup(p string) (*Manifest, bool) {
	key, err := rs.modules.Resources().Normalize(p)
	if err != nil {
		return nil, false
	}
	m, ok := rs.manifests[key]
	return m, ok
}

// Order returns the discovered manifests so that every manifest follows its
// dependencies. It returns a *dag.CycleError when the declarations form a cycle.
func (rs *Resolver) Order() ([]*Manifest, error) {
	keys, err := rs.graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	out := make([]*Manifest, 0, len(keys))
	for _, k := range keys {
		out = append(out, rs.manifests[k])
	}
	return out, nil
}

// Dependencies returns the names found by the last scan.
func (m *Manifest) Dependencies() []Name { return slices.Clone(m.deps) }

// Reload reloads the manifest and scans the fresh body again.
func (m *Manifest) Reload(cascade bool) *Manifest {
	m.Module.Reload(cascade)
	m.Core().Then(m.scan, nil)
	return m
}

func (m *Manifest) scan(r *resource.Request, _ any) (any, error) {
	rs := m.resolver
	extractor, ok := rs.extractors[r.Type()]
	if !ok {
		extractor = rs.fallback
	}
	deps := extractor.Extract(code(r))
	m.deps = deps

	for _, dep := range deps {
		if err := dep.Validate(); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", r.URL(), err)
		}
		child, err := rs.getManifest(rs.ManifestPath(dep), dep)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: dependency %s: %w", r.URL(), dep, err)
		}
		if err := rs.graph.TryAddEdge(child.URL(), r.URL()); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", r.URL(), err)
		}
		child.Core().Start()
		child.Core().Include(r)
	}
	rs.modules.logger.Debug("scanned manifest", "url", r.URL(), "deps", len(deps))
	return nil, nil
}

// manifestName derives a module name from a manifest path: the manifest file name
// is dropped and the remaining folders become dotted segments.
func manifestName(p, manifestFile string) Name {
	p = strings.TrimPrefix(p, "~/")
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
		if j := strings.IndexByte(p, '/'); j >= 0 {
			p = p[j+1:]
		} else {
			p = ""
		}
	}
	dir, file := path.Split(strings.Trim(p, "/"))
	if file != manifestFile {
		dir = path.Join(dir, strings.TrimSuffix(file, path.Ext(file)))
	}

	var segs []string
	for _, seg := range strings.Split(dir, "/") {
		if seg == "." || seg == ".." {
			continue
		}
		seg = strings.Map(func(r rune) rune {
			if r == '_' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return r
			}
			return '_'
		}, seg)
		if seg == "" {
			continue
		}
		if seg[0] >= '0' && seg[0] <= '9' {
			seg = "_" + seg
		}
		segs = append(segs, seg)
	}
	if len(segs) == 0 {
		return "root"
	}
	return Name(strings.Join(segs, "."))
}
