// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/corext/corext/internal/config"
)

// Output formats of config show.
const (
	formatText = "text"
	formatJSON = "json"
	formatTOML = "toml"
	formatCUE  = "cue"
)

func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage corext configuration",
		Long: `Manage corext configuration.

Configuration is read from the --config file, else from config.cue in:
  - Linux: ~/.config/corext/
  - macOS: ~/Library/Application Support/corext/
  - Windows: %APPDATA%\corext\
and finally from config.cue in the working directory. COREXT_* environment
variables override file values, e.g. COREXT_CACHE_DRIVER=bolt.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, source, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			if err := showConfig(app.stdout, cfg, source, format); err != nil {
				return app.fail(cmd, err)
			}
			return nil
		},
	}
	show.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json, toml or cue")

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := ""
			if app.configPath != "" {
				dir = filepath.Dir(app.configPath)
			}
			path, err := config.WriteDefault(dir, force)
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("✓")+" Configuration written to "+KeyStyle.Render(path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.configPath != "" {
				fmt.Fprintln(app.stdout, app.configPath)
				return nil
			}
			dir, err := config.ConfigDir()
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprintln(app.stdout, filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	}

	cfgCmd.AddCommand(show, initCmd, pathCmd)
	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, source, format string) error {
	switch format {
	case formatText:
		if source == "" {
			source = "(defaults)"
		}
		fmt.Fprintln(w, TitleStyle.Render("Configuration")+" "+SubtitleStyle.Render(source))
		keys, values := cfg.Flatten()
		for _, k := range keys {
			fmt.Fprintf(w, "  %s = %s\n", KeyStyle.Render(k), values[k])
		}
		return nil
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg.Map())
	case formatTOML:
		return toml.NewEncoder(w).Encode(cfg.Map())
	case formatCUE:
		_, err := io.WriteString(w, config.GenerateCUE(cfg))
		return err
	default:
		return fmt.Errorf("unknown format %q (valid: text, json, toml, cue)", format)
	}
}
