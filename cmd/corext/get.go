// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/corext/corext/pkg/resource"
)

func newGetCommand(app *App) *cobra.Command {
	var (
		typ  string
		body bool
	)
	cmd := &cobra.Command{
		Use:   "get URL...",
		Short: "Fetch resources without executing them",
		Long: `Fetch one or more resources through the configured transport and cache.
Paths starting with "~/" resolve against base_url. Requests for the same URL
are shared, so repeating an argument fetches it once.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runGet(cmd, args, typ, body)
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "expected content type; a mismatching response fails")
	cmd.Flags().BoolVar(&body, "body", false, "write the response bodies to stdout instead of a summary")
	return cmd
}

func (a *App) runGet(cmd *cobra.Command, urls []string, typ string, body bool) error {
	ctx := cmd.Context()
	cfg, _, err := a.loadConfig(ctx)
	if err != nil {
		return a.fail(cmd, err)
	}
	st, err := a.newStack(cfg)
	if err != nil {
		return a.fail(cmd, err)
	}

	var opts []resource.RequestOption
	if typ != "" {
		opts = append(opts, resource.WithType(typ))
	}
	reqs := make([]*resource.Request, 0, len(urls))
	for _, u := range urls {
		r, err := st.resources.Get(u, opts...)
		if err != nil {
			_ = st.close()
			return a.fail(cmd, err)
		}
		reqs = append(reqs, r.Start())
	}

	runErr := st.loop.Run(ctx)
	if body {
		for _, r := range reqs {
			if r.Status() == resource.StatusReady {
				_, _ = a.stdout.Write(r.Data())
			}
		}
	} else {
		renderSummary(a.stdout, st.resources)
	}
	if closeErr := st.close(); closeErr != nil {
		runErr = errors.Join(runErr, closeErr)
	}
	if runErr != nil {
		return a.fail(cmd, runErr)
	}
	return nil
}
