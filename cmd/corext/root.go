// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "corext",
		Short: "A dependency-aware resource loader",
		Long: TitleStyle.Render("corext") + SubtitleStyle.Render(" - A dependency-aware resource loader") + `

corext fetches scripts and assets over http, https and file URLs, resolves
module manifests into a dependency graph and executes modules once all of
their dependencies are ready.

` + SubtitleStyle.Render("Examples:") + `
  corext load                       Boot the configured application
  corext load --watch               Boot, then reload modules as files change
  corext get ~/app/style.css        Fetch single resources
  corext deps ~/app/manifest.js     Print the manifest dependency order
  corext config show                Show the effective configuration`,
		SilenceUsage: true,
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "config file (default is <user config dir>/corext/config.cue)")
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	flags.StringVar(&app.baseURL, "base-url", "", "override base_url")
	flags.BoolVar(&app.debug, "debug", false, "prefer non-minified module URLs")

	root.AddCommand(
		newLoadCommand(app),
		newGetCommand(app),
		newDepsCommand(app),
		newConfigCommand(app),
	)
	return root
}

// fail renders err on stderr and turns it into an exit code.
func (a *App) fail(cmd *cobra.Command, err error) error {
	renderError(a.stderr, err, a.verbose)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: 1, Err: err}
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
