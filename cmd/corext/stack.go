// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/corext/corext/internal/cache"
	"github.com/corext/corext/internal/config"
	"github.com/corext/corext/internal/engine"
	"github.com/corext/corext/internal/metrics"
	"github.com/corext/corext/internal/transport"
	"github.com/corext/corext/pkg/bootstrap"
	"github.com/corext/corext/pkg/eventloop"
	"github.com/corext/corext/pkg/module"
	"github.com/corext/corext/pkg/resource"
)

// stack is one loader instance built from configuration.
type stack struct {
	cfg       *config.Config
	logger    *log.Logger
	loop      *eventloop.Loop
	resources *resource.Registry
	modules   *module.Registry
	resolver  *module.Resolver
	metrics   *metrics.Observer
	cache     io.Closer
}

func (a *App) newStack(cfg *config.Config) (*stack, error) {
	logger := log.NewWithOptions(a.stderr, log.Options{
		Level:  cfg.LogLevel.Level(),
		Prefix: "corext",
	})

	base, err := cfg.ParsedBaseURL()
	if err != nil {
		return nil, err
	}
	store, closer, err := cache.Open(cfg.Cache)
	if err != nil {
		return nil, err
	}

	obs := metrics.New()
	loop := eventloop.New(eventloop.WithLogger(logger.WithPrefix("loop")))
	opts := []resource.Option{
		resource.WithLogger(logger),
		resource.WithObserver(obs),
		resource.WithVersion(cfg.Version),
		resource.WithTimeout(cfg.Timeout),
		resource.WithCacheBusting(cfg.CacheBusting, cfg.CacheBustingVar),
	}
	if base != nil {
		opts = append(opts, resource.WithBaseURL(base))
	}
	if store != nil {
		opts = append(opts, resource.WithCache(store))
	}
	tr := transport.Default(
		transport.WithUserAgent("corext/"+Version),
		transport.WithHTTPLogger(logger.WithPrefix("http")),
	)
	res := resource.NewRegistry(loop, tr, opts...)

	exec := engine.Default(
		engine.NewJS(engine.WithJSLogger(logger.WithPrefix("js"))),
		engine.NewShell(engine.WithShellLogger(logger.WithPrefix("sh")), engine.WithShellIO(a.stdout, a.stderr)),
	)
	modules := module.NewRegistry(res,
		module.WithExecutor(exec),
		module.WithDebug(cfg.Debug),
		module.WithRegistryLogger(logger),
	)

	return &stack{
		cfg:       cfg,
		logger:    logger,
		loop:      loop,
		resources: res,
		modules:   modules,
		resolver:  module.NewResolver(modules, module.WithManifestFile(cfg.ManifestFile)),
		metrics:   obs,
		cache:     closer,
	}, nil
}

// sequencer builds the bootstrap sequencer for the configured boot.
func (s *stack) sequencer() *bootstrap.Sequencer {
	cfg := s.cfg
	return bootstrap.New(s.resolver, bootstrap.Config{
		CoreScripts:     cfg.CoreScripts,
		DefaultManifest: cfg.DefaultManifest,
		AppManifest:     cfg.AppManifest,
		AppModule: bootstrap.AppModule{
			Name:        module.Name(cfg.AppModule.Name),
			URL:         cfg.AppModule.URL,
			MinifiedURL: cfg.AppModule.MinifiedURL,
		},
		GlobalScope: cfg.GlobalScope,
	}, bootstrap.WithLogger(s.logger.WithPrefix("bootstrap")))
}

// close writes the metrics file when configured and releases the cache.
func (s *stack) close() error {
	var errs []error
	if s.cfg.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics: %w", err))
		} else {
			s.logger.Debug("metrics written", "path", s.cfg.MetricsFile)
		}
	}
	if err := s.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing cache: %w", err))
	}
	return errors.Join(errs...)
}
