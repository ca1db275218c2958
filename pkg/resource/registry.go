// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/corext/corext/pkg/eventloop"
)

// DefaultCacheBustingVar is the query parameter appended when cache busting is enabled.
const DefaultCacheBustingVar = "_v_"

type (
	// Registry maps normalized URLs to their single live Request.
	// It also carries the collaborators every request uses.
	Registry struct {
		mu       sync.Mutex
		requests map[string]*Request

		loop      *eventloop.Loop
		transport Transport
		cache     Cache
		observer  Observer
		logger    *log.Logger
		baseURL   *url.URL
		version   string
		timeout   time.Duration
		cacheBust bool
		bustVar   string
		bustValue string
	}

	// Option configures a Registry.
	Option func(*Registry)

	// RequestOption configures a Request when the Registry creates it.
	// Options are ignored when the URL is already registered.
	RequestOption func(*requestConfig)

	requestConfig struct {
		typ          string
		async        bool
		cacheBusting *bool
	}
)

// WithCache installs a persistent read-through cache.
func WithCache(c Cache) Option {
	return func(g *Registry) { g.cache = c }
}

// WithObserver installs a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(g *Registry) { g.observer = o }
}

// WithLogger sets the logger; requests derive theirs from it.
func WithLogger(logger *log.Logger) Option {
	return func(g *Registry) { g.logger = logger }
}

// WithBaseURL sets the URL that "~/" paths and relative URLs resolve against.
func WithBaseURL(base *url.URL) Option {
	return func(g *Registry) {
		if base == nil {
			g.baseURL = nil
			return
		}
		b := *base
		if !strings.HasSuffix(b.Path, "/") {
			b.Path += "/"
		}
		g.baseURL = &b
	}
}

// WithVersion sets the version tag used for cache keys and cache-busting values.
func WithVersion(version string) Option {
	return func(g *Registry) { g.version = version }
}

// WithTimeout bounds every transfer. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(g *Registry) { g.timeout = d }
}

// WithCacheBusting enables the cache-busting query parameter for new requests.
// An empty name keeps DefaultCacheBustingVar.
func WithCacheBusting(enabled bool, name string) Option {
	return func(g *Registry) {
		g.cacheBust = enabled
		if name != "" {
			g.bustVar = name
		}
	}
}

// WithType declares the resource type instead of inferring it from the extension.
func WithType(typ string) RequestOption {
	return func(c *requestConfig) { c.typ = CanonicalType(typ) }
}

// WithAsync selects background (true, default) or inline (false) transfers.
func WithAsync(async bool) RequestOption {
	return func(c *requestConfig) { c.async = async }
}

// WithRequestCacheBusting overrides the registry's cache-busting default.
func WithRequestCacheBusting(enabled bool) RequestOption {
	return func(c *requestConfig) { c.cacheBusting = &enabled }
}

// NewRegistry creates a Registry whose requests run on loop and fetch through transport.
func NewRegistry(loop *eventloop.Loop, transport Transport, opts ...Option) *Registry {
	g := &Registry{
		requests:  make(map[string]*Request),
		loop:      loop,
		transport: transport,
		logger:    log.Default(),
		bustVar:   DefaultCacheBustingVar,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.bustValue = g.version
	if g.bustValue == "" {
		g.bustValue = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return g
}

// Loop returns the event loop requests run on.
func (g *Registry) Loop() *eventloop.Loop { return g.loop }

// Logger returns the registry logger.
func (g *Registry) Logger() *log.Logger { return g.logger }

// BaseURL returns a copy of the configured base URL, or nil.
func (g *Registry) BaseURL() *url.URL {
	if g.baseURL == nil {
		return nil
	}
	b := *g.baseURL
	return &b
}

// Normalize resolves "~/" and relative references against the base URL, removes
// dot segments and fragments, and lowercases scheme and host.
func (g *Registry) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty resource URL")
	}

	if rest, ok := strings.CutPrefix(raw, "~/"); ok {
		if g.baseURL == nil {
			return "", fmt.Errorf("%q uses the virtual root but no base URL is configured", raw)
		}
		raw = rest
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid resource URL %q: %w", raw, err)
	}
	if g.baseURL != nil {
		u = g.baseURL.ResolveReference(u)
	} else if u.Path != "" {
		trailing := strings.HasSuffix(u.Path, "/")
		u.Path = path.Clean(u.Path)
		if trailing && !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String(), nil
}

// Get returns the Request registered for rawURL, creating and registering it on first
// use. Repeated calls for the same normalized URL return the identical Request and
// never issue a second transfer.
func (g *Registry) Get(rawURL string, opts ...RequestOption) (*Request, error) {
	key, err := g.Normalize(rawURL)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.requests[key]; ok {
		return r, nil
	}

	cfg := requestConfig{async: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.typ == "" {
		t, ok := InferType(key)
		if !ok {
			return nil, fmt.Errorf("%w for %q: no type given and extension %q is not registered", ErrUnknownType, rawURL, path.Ext(stripQuery(key)))
		}
		cfg.typ = t
	}
	bust := g.cacheBust
	if cfg.cacheBusting != nil {
		bust = *cfg.cacheBusting
	}

	r := newRequest(g, key, cfg.typ, cfg.async, bust)
	g.requests[key] = r
	r.logger.Debug("registered resource", "type", cfg.typ)
	return r, nil
}

// MustGet is like Get but panics on error. It is meant for fixed tables of
// well-known URLs, where a failure is a programming mistake.
func (g *Registry) MustGet(rawURL string, opts ...RequestOption) *Request {
	r, err := g.Get(rawURL, opts...)
	if err != nil {
		panic(usage("MustGet", err.Error()))
	}
	return r
}

// Lookup returns the Request registered for rawURL without creating one.
func (g *Registry) Lookup(rawURL string) (*Request, bool) {
	key, err := g.Normalize(rawURL)
	if err != nil {
		return nil, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.requests[key]
	return r, ok
}

// Len returns the number of registered requests.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// Each calls fn for every registered request in URL order.
func (g *Registry) Each(fn func(*Request)) {
	g.mu.Lock()
	keys := make([]string, 0, len(g.requests))
	for k := range g.requests {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	reqs := make([]*Request, 0, len(keys))
	for _, k := range keys {
		reqs = append(reqs, g.requests[k])
	}
	g.mu.Unlock()

	for _, r := range reqs {
		fn(r)
	}
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
