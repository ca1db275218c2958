// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"net/url"
	"path"

	"github.com/charmbracelet/log"

	"github.com/corext/corext/pkg/module"
	"github.com/corext/corext/pkg/resource"
)

// ErrNoBaseURL is returned by NewReloader without a base URL.
var ErrNoBaseURL = errors.New("watch: reloader needs the base URL the watched tree is served under")

type (
	// Reloader maps changed files to loaded requests and reloads them, and
	// everything depending on them, on the event loop. Manifests scan their
	// fresh body again. Modules that had run execute again once their fresh
	// body is ready.
	Reloader struct {
		resolver *module.Resolver
		modules  *module.Registry
		base     *url.URL
		global   bool
		logger   *log.Logger
	}

	// ReloaderOption configures a Reloader.
	ReloaderOption func(*Reloader)
)

// WithGlobalScope re-executes modules in the executor's shared scope.
func WithGlobalScope(global bool) ReloaderOption {
	return func(r *Reloader) { r.global = global }
}

// WithReloaderLogger sets the logger.
func WithReloaderLogger(l *log.Logger) ReloaderOption {
	return func(r *Reloader) { r.logger = l }
}

// NewReloader creates a Reloader. base is the URL the watched directory is
// served under; a changed path p maps to base resolved against p.
func NewReloader(resolver *module.Resolver, base *url.URL, opts ...ReloaderOption) (*Reloader, error) {
	if base == nil {
		return nil, ErrNoBaseURL
	}
	r := &Reloader{resolver: resolver, base: base, logger: log.Default()}
	if resolver != nil {
		r.modules = resolver.Modules()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// URLFor returns the request URL a changed path maps to.
func (r *Reloader) URLFor(rel string) string {
	return r.base.ResolveReference(&url.URL{Path: path.Clean(rel)}).String()
}

// Changed reloads the requests for the changed paths. It is safe to call from
// any goroutine: the work is posted to the event loop and Changed waits for it
// to be scheduled. It returns the URLs of every reloaded request.
func (r *Reloader) Changed(ctx context.Context, changed []string) ([]string, error) {
	res := r.modules.Resources()
	urls := make([]string, 0, len(changed))
	for _, rel := range changed {
		urls = append(urls, r.URLFor(rel))
	}

	done := make(chan []string, 1)
	res.Loop().Post(func() { done <- r.reload(ctx, urls) })

	select {
	case reloaded := <-done:
		return reloaded, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnChange adapts Changed to Config.OnChange.
func (r *Reloader) OnChange(ctx context.Context, changed []string) error {
	_, err := r.Changed(ctx, changed)
	return err
}

// reload runs on the loop goroutine.
func (r *Reloader) reload(ctx context.Context, urls []string) []string {
	res := r.modules.Resources()

	var (
		order []*resource.Request
		seen  = make(map[*resource.Request]bool)
	)
	var visit func(*resource.Request)
	visit = func(req *resource.Request) {
		if seen[req] {
			return
		}
		seen[req] = true
		order = append(order, req)
		for _, d := range req.Dependants() {
			visit(d)
		}
	}
	for _, u := range urls {
		req, ok := res.Lookup(u)
		if !ok || req.Status() == resource.StatusPending {
			continue
		}
		visit(req)
	}

	reloaded := make([]string, 0, len(order))
	for _, req := range order {
		m, isModule := r.modules.ByRequest(req)
		man, isManifest := r.resolver.Lookup(req.URL())
		if isModule && m.Executed() {
			// Registered first so a request completing inline still runs it.
			req.Ready(func(*resource.Request) error {
				return m.Execute(ctx, r.global)
			})
		}
		switch {
		case isManifest:
			man.Reload(false)
		case isModule:
			m.Reload(false)
		default:
			req.Reload(false)
		}
		r.logger.Info("reloading", "url", req.URL())
		reloaded = append(reloaded, req.URL())
	}
	return reloaded
}
