// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/corext/corext/internal/config"
)

type (
	// App is the composition root of the CLI. Command handlers receive it and
	// build the loader stack through it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer

		configPath string
		verbose    bool
		baseURL    string
		debug      bool
	}

	// Dependencies are the injection points of NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp creates an App.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig loads the configuration and applies the global flag overrides.
func (a *App) loadConfig(ctx context.Context) (*config.Config, string, error) {
	cfg, source, err := a.Config.LoadWithSource(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
	if err != nil {
		return nil, "", err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
		if _, err := cfg.ParsedBaseURL(); err != nil {
			return nil, "", err
		}
	}
	if a.debug {
		cfg.Debug = true
	}
	if a.verbose {
		cfg.LogLevel = config.LogLevelDebug
	}
	return cfg, source, nil
}
