// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"

	"github.com/corext/corext/internal/issue"
	"github.com/corext/corext/pkg/module"
)

// ErrNoManifest is returned by deps when neither arguments nor app_manifest
// name a manifest.
var ErrNoManifest = errors.New("no manifest given and app_manifest is not configured")

func newDepsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "deps [MANIFEST...]",
		Short: "Resolve manifests and print their dependency order",
		Long: `Load the given manifests (default: app_manifest) and every manifest they
declare, transitively, without executing application modules. The result
lists each manifest after all of its dependencies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runDeps(cmd, args)
		},
	}
}

func (a *App) runDeps(cmd *cobra.Command, paths []string) error {
	ctx := cmd.Context()
	cfg, _, err := a.loadConfig(ctx)
	if err != nil {
		return a.fail(cmd, err)
	}
	if len(paths) == 0 {
		if cfg.AppManifest == "" {
			return a.fail(cmd, ErrNoManifest)
		}
		paths = []string{cfg.AppManifest}
	}

	st, err := a.newStack(cfg)
	if err != nil {
		return a.fail(cmd, err)
	}
	defer func() { _ = st.close() }()

	for _, p := range paths {
		m, err := st.resolver.GetManifest(p)
		if err != nil {
			return a.fail(cmd, err)
		}
		m.Core().Start()
	}
	if err := st.loop.Run(ctx); err != nil {
		return a.fail(cmd, issue.WrapWithContext(err, issue.OpResolveManifests, strings.Join(paths, ", ")))
	}

	order, err := st.resolver.Order()
	if err != nil {
		return a.fail(cmd, issue.WrapWithContext(err, issue.OpResolveManifests, strings.Join(paths, ", ")))
	}
	fmt.Fprintln(a.stdout, renderOrder(order))
	return nil
}

// renderOrder draws the manifests in load order, each with its declared
// dependencies as children.
func renderOrder(order []*module.Manifest) string {
	t := tree.Root(TitleStyle.Render("load order")).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(SubtitleStyle)
	for _, m := range order {
		node := tree.Root(KeyStyle.Render(string(m.FullName())) + " " + SubtitleStyle.Render(m.URL()))
		for _, dep := range m.Dependencies() {
			node.Child(string(dep))
		}
		t.Child(node)
	}
	return t.String()
}
