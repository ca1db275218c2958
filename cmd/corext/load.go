// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/corext/corext/internal/watch"
	"github.com/corext/corext/pkg/resource"
)

type loadOptions struct {
	watch       bool
	dir         string
	metricsFile string
	global      bool
}

func newLoadCommand(app *App) *cobra.Command {
	var opts loadOptions
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Boot the configured application",
		Long: `Load the core scripts, call the system-loaded hooks, then load the
default and application manifests with every declared dependency and execute
the application module.

With --watch, corext keeps running and reloads the requests for changed files
together with everything that depends on them. Modules that had executed are
executed again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runLoad(cmd, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "reload changed files until interrupted")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "directory to watch (default: the base_url path for file URLs, else .)")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	cmd.Flags().BoolVar(&opts.global, "global", false, "execute modules in the shared global scope")
	return cmd
}

func (a *App) runLoad(cmd *cobra.Command, opts loadOptions) error {
	ctx := cmd.Context()
	cfg, source, err := a.loadConfig(ctx)
	if err != nil {
		return a.fail(cmd, err)
	}
	if opts.metricsFile != "" {
		cfg.MetricsFile = opts.metricsFile
	}
	if cmd.Flags().Changed("global") {
		cfg.GlobalScope = opts.global
	}

	st, err := a.newStack(cfg)
	if err != nil {
		return a.fail(cmd, err)
	}
	st.logger.Debug("configuration loaded", "source", source)

	runErr := a.boot(ctx, st, opts)
	renderSummary(a.stdout, st.resources)
	if closeErr := st.close(); closeErr != nil {
		runErr = errors.Join(runErr, closeErr)
	}
	if runErr != nil {
		return a.fail(cmd, runErr)
	}
	return nil
}

func (a *App) boot(ctx context.Context, st *stack, opts loadOptions) error {
	terminal, err := st.sequencer().Boot(ctx)
	if err != nil {
		return err
	}
	if !opts.watch {
		if err := st.loop.Run(ctx); err != nil {
			return err
		}
		st.logger.Info("boot complete", "url", terminal.URL(), "status", terminal.Status())
		return nil
	}

	base := st.resources.BaseURL()
	reloader, err := watch.NewReloader(st.resolver, base,
		watch.WithGlobalScope(st.cfg.GlobalScope),
		watch.WithReloaderLogger(st.logger.WithPrefix("reload")),
	)
	if err != nil {
		return err
	}
	dir := opts.dir
	if dir == "" && base.Scheme == "file" {
		dir = base.Path
	}
	w, err := watch.New(watch.Config{
		Patterns: st.cfg.Watch.Patterns,
		Ignore:   st.cfg.Watch.Ignore,
		Debounce: st.cfg.Watch.Debounce,
		BaseDir:  dir,
		OnChange: reloader.OnChange,
		Logger:   st.logger.WithPrefix("watch"),
	})
	if err != nil {
		return err
	}

	release := st.loop.Hold()
	watchErr := make(chan error, 1)
	go func() {
		defer release()
		watchErr <- w.Run(ctx)
	}()
	st.logger.Info("watching for changes", "dir", w.BaseDir())

	runErr := st.loop.Run(ctx)
	if err := <-watchErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if ctx.Err() != nil && errors.Is(runErr, ctx.Err()) {
		return nil
	}
	return runErr
}

// renderSummary prints one row per registered request.
func renderSummary(w io.Writer, res *resource.Registry) {
	var (
		rows     [][]string
		statuses []resource.Status
	)
	res.Each(func(r *resource.Request) {
		statuses = append(statuses, r.Status())
		rows = append(rows, []string{
			r.Status().String(),
			r.URL(),
			r.Type(),
			strconv.Itoa(len(r.Data())),
		})
	})
	if len(rows) == 0 {
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		Headers("STATUS", "URL", "TYPE", "BYTES").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			cell := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return cell.Inherit(TitleStyle)
			case col == 0:
				return cell.Inherit(statusStyle(statuses[row]))
			case col == 1:
				return cell.Inherit(KeyStyle)
			default:
				return cell
			}
		})
	fmt.Fprintln(w, t.Render())
}
