// SPDX-License-Identifier: MPL-2.0

// Package bootstrap loads the core scripts in a fixed order and then hands over to
// manifest-driven application loading.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/corext/corext/pkg/module"
	"github.com/corext/corext/pkg/resource"
)

// ErrNothingToBoot is returned when neither core scripts nor manifests are configured.
var ErrNothingToBoot = errors.New("nothing to boot: no core scripts, manifests or app module configured")

type (
	// Config lists what the sequencer loads.
	Config struct {
		// CoreScripts load first; each script depends on the previous one.
		CoreScripts []string
		// DefaultManifest is loaded once the core scripts are ready.
		DefaultManifest string
		// AppManifest depends on DefaultManifest.
		AppManifest string
		// AppModule is executed once ready; it depends on AppManifest.
		AppModule AppModule
		// GlobalScope executes the app module (and its dependencies) in the shared scope.
		GlobalScope bool
	}

	// AppModule names the application module. URL is the non-minified URL.
	AppModule struct {
		Name        module.Name
		URL         string
		MinifiedURL string
	}

	// SystemLoadedFunc runs after the last core script is ready and before any
	// manifest loads.
	SystemLoadedFunc func(ctx context.Context) error

	// Sequencer orders the boot. Boot only takes effect once.
	Sequencer struct {
		resolver *module.Resolver
		cfg      Config
		logger   *log.Logger

		onSystemLoaded []SystemLoadedFunc
		ctx            context.Context
		terminal       *resource.Request
		core           []*resource.Request
		defaultMan     *module.Manifest
		appMan         *module.Manifest
		app            *module.Module
	}

	// Option configures a Sequencer.
	Option func(*Sequencer)
)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Sequencer) { s.logger = logger }
}

// New creates a Sequencer that resolves manifests through resolver.
func New(resolver *module.Resolver, cfg Config, opts ...Option) *Sequencer {
	s := &Sequencer{
		resolver: resolver,
		cfg:      cfg,
		logger:   resolver.Modules().Resources().Logger().WithPrefix("bootstrap"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnSystemLoaded registers fn to run, in registration order, once the core scripts
// are ready. Registrations after that point are ignored.
func (s *Sequencer) OnSystemLoaded(fn SystemLoadedFunc) {
	if fn == nil {
		return
	}
	s.onSystemLoaded = append(s.onSystemLoaded, fn)
}

// Booted reports whether Boot already ran.
func (s *Sequencer) Booted() bool { return s.terminal != nil }

// CoreScripts returns the core script requests in load order.
func (s *Sequencer) CoreScripts() []*resource.Request { return s.core }

// DefaultManifest returns the default manifest, or nil.
func (s *Sequencer) DefaultManifest() *module.Manifest { return s.defaultMan }

// AppManifest returns the application manifest, or nil.
func (s *Sequencer) AppManifest() *module.Manifest { return s.appMan }

// App returns the application module, or nil.
func (s *Sequencer) App() *module.Module { return s.app }

// Boot wires and starts the core scripts. The returned request is the last thing
// the boot waits for: the app module, else the app manifest, else the default
// manifest, else the last core script. Calling Boot again returns the same request
// without doing anything. The caller drives the event loop.
func (s *Sequencer) Boot(ctx context.Context) (*resource.Request, error) {
	if s.terminal != nil {
		return s.terminal, nil
	}
	s.ctx = ctx

	if err := s.wireApplication(); err != nil {
		return nil, err
	}

	res := s.resolver.Modules().Resources()
	var prev *resource.Request
	for _, u := range s.cfg.CoreScripts {
		r, err := res.Get(u)
		if err != nil {
			return nil, fmt.Errorf("core script %s: %w", u, err)
		}
		if prev != nil {
			prev.Include(r)
		}
		s.core = append(s.core, r)
		prev = r
	}

	switch {
	case s.app != nil:
		s.terminal = s.app.Core()
	case s.appMan != nil:
		s.terminal = s.appMan.Core()
	case s.defaultMan != nil:
		s.terminal = s.defaultMan.Core()
	case prev != nil:
		s.terminal = prev
	default:
		return nil, ErrNothingToBoot
	}

	if prev == nil {
		s.logger.Debug("no core scripts configured")
		res.Loop().Post(func() {
			if err := s.systemLoaded(); err != nil {
				res.Loop().Report(err)
			}
		})
		return s.terminal, nil
	}

	prev.Ready(func(*resource.Request) error { return s.systemLoaded() })
	prev.Start()
	s.logger.Info("boot started", "core_scripts", len(s.core))
	return s.terminal, nil
}

// wireApplication defines the manifests and the app module and their includes
// without starting anything.
func (s *Sequencer) wireApplication() error {
	var err error
	if s.cfg.DefaultManifest != "" {
		if s.defaultMan, err = s.resolver.GetManifest(s.cfg.DefaultManifest); err != nil {
			return fmt.Errorf("default manifest: %w", err)
		}
	}
	if s.cfg.AppManifest != "" {
		if s.appMan, err = s.resolver.GetManifest(s.cfg.AppManifest); err != nil {
			return fmt.Errorf("app manifest: %w", err)
		}
		if s.defaultMan != nil && s.defaultMan != s.appMan {
			resource.Include(s.defaultMan, s.appMan)
		}
	}
	if s.cfg.AppModule.Name != "" {
		am := s.cfg.AppModule
		if s.app, err = s.resolver.Modules().Define(am.Name, am.URL, am.MinifiedURL); err != nil {
			return fmt.Errorf("app module: %w", err)
		}
		switch {
		case s.appMan != nil:
			resource.Include(s.appMan, s.app)
		case s.defaultMan != nil:
			resource.Include(s.defaultMan, s.app)
		}
	}
	return nil
}

func (s *Sequencer) systemLoaded() error {
	s.logger.Info("system loaded", "callbacks", len(s.onSystemLoaded))
	callbacks := s.onSystemLoaded
	s.onSystemLoaded = nil
	for i, fn := range callbacks {
		if err := fn(s.ctx); err != nil {
			return fmt.Errorf("system-loaded callback %d: %w", i+1, err)
		}
	}

	if s.app != nil {
		app := s.app
		app.Core().Ready(func(*resource.Request) error {
			if err := app.Execute(s.ctx, s.cfg.GlobalScope); err != nil {
				return err
			}
			s.logger.Info("application executed", "module", app.FullName())
			return nil
		})
	}
	for _, r := range []resource.Loadable{s.loadable(s.defaultMan), s.loadable(s.appMan), s.appLoadable()} {
		if r != nil {
			r.Core().Start()
		}
	}
	return nil
}

func (s *Sequencer) loadable(m *module.Manifest) resource.Loadable {
	if m == nil {
		return nil
	}
	return m
}

func (s *Sequencer) appLoadable() resource.Loadable {
	if s.app == nil {
		return nil
	}
	return s.app
}
