// SPDX-License-Identifier: MPL-2.0

package module_test

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/corext/corext/internal/dag"
	"github.com/corext/corext/internal/testutil"
	"github.com/corext/corext/pkg/eventloop"
	"github.com/corext/corext/pkg/module"
	"github.com/corext/corext/pkg/resource"
)

const base = "http://example.test/"

type fixture struct {
	loop     *eventloop.Loop
	ft       *testutil.FakeTransport
	exec     *testutil.RecordingExecutor
	modules  *module.Registry
	resolver *module.Resolver
}

func newFixture(t *testing.T, debug bool) *fixture {
	t.Helper()
	quiet := log.New(io.Discard)
	loop := eventloop.New(eventloop.WithLogger(quiet))
	u, err := url.Parse(base)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	ft := testutil.NewFakeTransport()
	res := resource.NewRegistry(loop, ft, resource.WithBaseURL(u), resource.WithLogger(quiet))
	exec := &testutil.RecordingExecutor{}
	modules := module.NewRegistry(res, module.WithExecutor(exec), module.WithDebug(debug))
	return &fixture{
		loop:     loop,
		ft:       ft,
		exec:     exec,
		modules:  modules,
		resolver: module.NewResolver(modules),
	}
}

func (f *fixture) run(t *testing.T) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.loop.Run(ctx)
}

func (f *fixture) mustRun(t *testing.T) {
	t.Helper()
	if err := f.run(t); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}
}

func TestDefine_ChoosesURLByDebugFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		debug  bool
		min    string
		wantTo string
	}{
		{"release uses minified", false, "lib/a.min.js", base + "lib/a.min.js"},
		{"debug uses non-minified", true, "lib/a.min.js", base + "lib/a.js"},
		{"no minified falls back", false, "", base + "lib/a.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tt.debug)
			m, err := f.modules.Define("lib.a", "lib/a.js", tt.min)
			if err != nil {
				t.Fatalf("Define: %v", err)
			}
			if m.URL() != tt.wantTo {
				t.Errorf("expected %s, got %s", tt.wantTo, m.URL())
			}
			if m.NonMinifiedURL() != "lib/a.js" || m.MinifiedURL() != tt.min {
				t.Errorf("declared URLs not kept: %q %q", m.NonMinifiedURL(), m.MinifiedURL())
			}
		})
	}
}

func TestDefine_SharesResourceRegistry(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	m, err := f.modules.Define("lib.a", "lib/a.js", "")
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
	again, err := f.modules.Define("lib.a", "lib/a.js", "")
	if err != nil || again != m {
		t.Fatalf("expected the same module, got %v / %v", again, err)
	}
	if r := f.modules.Resources().MustGet("lib/a.js"); r != m.Core() {
		t.Error("expected module request to be the registry request")
	}
	if _, err := f.modules.Define("lib.b", "lib/a.js", ""); err == nil {
		t.Error("expected error when a URL is claimed by two names")
	}
	if _, err := f.modules.Define("9bad", "x.js", ""); !errors.Is(err, module.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestVarAccess_BeforeExecution(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	m, err := f.modules.Define("lib.a", "lib/a.js", "")
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
	if _, err := m.GetVar("x"); !errors.Is(err, module.ErrNotExecuted) {
		t.Errorf("expected ErrNotExecuted, got %v", err)
	}
	if err := m.SetVar("x", 1); !errors.Is(err, module.ErrNotExecuted) {
		t.Errorf("expected ErrNotExecuted, got %v", err)
	}
	if m.Exports() != nil {
		t.Error("expected nil exports before execution")
	}
	if err := m.Execute(context.Background(), false); !errors.Is(err, module.ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestExecute_IdempotentAndParentsFirst(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	f.ft.Serve(base+"lib/base.js", "base body").Serve(base+"app.js", "app body")

	parent, err := f.modules.Define("lib.base", "lib/base.js", "")
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
	app, err := f.modules.Define("app", "app.js", "")
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
	resource.Include(parent, app)

	ctx := context.Background()
	app.Core().Ready(func(*resource.Request) error {
		if err := app.Execute(ctx, false); err != nil {
			return err
		}
		return app.Execute(ctx, false)
	})
	app.Core().Start()
	f.mustRun(t)

	if diff := cmp.Diff([]module.Name{"lib.base", "app"}, f.exec.Names()); diff != "" {
		t.Errorf("execution order mismatch (-want +got):\n%s", diff)
	}
	if app.Core().Status() != resource.StatusExecuted || parent.Core().Status() != resource.StatusExecuted {
		t.Errorf("expected both executed, got %s / %s", parent.Core().Status(), app.Core().Status())
	}
	runs := f.exec.Runs()
	if runs[1].Code != "app body" || runs[1].Imports["lib.base"] == nil {
		t.Errorf("unexpected source: %+v", runs[1])
	}

	v, err := app.GetVar("name")
	if err != nil || v != "app" {
		t.Errorf("GetVar = %v, %v", v, err)
	}
	if err := app.SetVar("answer", 42); err != nil {
		t.Fatalf("SetVar: %v", err)
	}
	if v, _ := app.GetVar("answer"); v != 42 {
		t.Errorf("expected 42, got %v", v)
	}
	if _, err := app.GetVar("missing"); !errors.Is(err, module.ErrUnknownVar) {
		t.Errorf("expected ErrUnknownVar, got %v", err)
	}
}

func TestExecute_FailureKeepsModuleUnexecuted(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	f.ft.Serve(base+"a.js", "boom")
	f.exec.Fail = map[module.Name]error{"a": errors.New("syntax error")}

	m, err := f.modules.Define("a", "a.js", "")
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
	var execErr error
	m.Core().Ready(func(*resource.Request) error {
		execErr = m.Execute(context.Background(), true)
		return nil
	}).Start()
	f.mustRun(t)

	if execErr == nil || m.Executed() {
		t.Errorf("expected failed execution, got err=%v executed=%v", execErr, m.Executed())
	}
	if m.Core().Status() != resource.StatusReady {
		t.Errorf("expected status to stay ready, got %s", m.Core().Status())
	}
}

func TestGetManifest_ResolvesTransitively(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	f.ft.
		Serve(base+"app/manifest.js", `module(["lib.ui", 'lib.core'], function () {});`).
		Serve(base+"lib/ui/manifest.js", `module(["lib.core"], function () {});`).
		Serve(base+"lib/core/manifest.js", `// no deps`)

	var readyOrder []string
	app, err := f.resolver.GetManifest("~/app/manifest.js")
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	app.Core().Ready(func(r *resource.Request) error {
		readyOrder = append(readyOrder, r.URL())
		return app.Execute(context.Background(), false)
	}).Start()
	f.mustRun(t)

	if app.Core().Status() != resource.StatusExecuted {
		t.Fatalf("expected app executed, got %s", app.Core().Status())
	}
	if diff := cmp.Diff([]module.Name{"lib.ui", "lib.core"}, app.Dependencies()); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]module.Name{"lib.core", "lib.ui", "app"}, f.exec.Names()); diff != "" {
		t.Errorf("execution order mismatch (-want +got):\n%s", diff)
	}
	if f.ft.Calls(base+"lib/core/manifest.js") != 1 {
		t.Errorf("expected shared dependency fetched once, got %d", f.ft.Calls(base+"lib/core/manifest.js"))
	}

	order, err := f.resolver.Order()
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	var names []module.Name
	for _, m := range order {
		names = append(names, m.FullName())
	}
	if diff := cmp.Diff([]module.Name{"lib.core", "lib.ui", "app"}, names); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestGetManifest_CycleIsReported(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	f.ft.
		Serve(base+"a/manifest.js", `module(["b"])`).
		Serve(base+"b/manifest.js", `module(["a"])`).
		Serve(base+"c/manifest.js", `module(["d"])`).
		Serve(base+"d/manifest.js", "")

	a, err := f.resolver.GetManifest("~/a/manifest.js")
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	a.Core().Start()
	err = f.run(t)

	if !errors.Is(err, dag.ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if a.Core().Status() == resource.StatusReady {
		t.Error("manifest in a cycle must not become ready")
	}
	b, ok := f.resolver.Lookup("~/b/manifest.js")
	if !ok || b.Core().Status() != resource.StatusError {
		t.Fatalf("the manifest closing the cycle should fail")
	}
	if _, err := f.resolver.Order(); err != nil {
		t.Errorf("the rejected edge must not stay in the graph, got %v", err)
	}

	// Unrelated manifests still resolve.
	c, err := f.resolver.GetManifest("~/c/manifest.js")
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	c.Core().Start()
	f.mustRun(t)
	if c.Core().Status() != resource.StatusReady {
		t.Errorf("expected c ready after an earlier cycle, got %s", c.Core().Status())
	}
	order, err := f.resolver.Order()
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	pos := map[string]int{}
	for i, m := range order {
		pos[m.URL()] = i
	}
	if pos[base+"d/manifest.js"] > pos[base+"c/manifest.js"] {
		t.Errorf("d must precede c in %v", pos)
	}
}

func TestGetManifest_ShellDirectives(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	f.ft.
		Serve(base+"tools/manifest.sh", "#!/bin/sh\nmodule lib.shell\necho hi\n").
		Serve(base+"lib/shell/manifest.sh", "echo lib\n")

	resolver := module.NewResolver(f.modules, module.WithManifestFile("manifest.sh"))
	m, err := resolver.GetManifest("~/tools/manifest.sh")
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	m.Core().Start()
	f.mustRun(t)

	if m.FullName() != "tools" {
		t.Errorf("expected derived name tools, got %s", m.FullName())
	}
	if diff := cmp.Diff([]module.Name{"lib.shell"}, m.Dependencies()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if _, ok := resolver.Lookup("~/lib/shell/manifest.sh"); !ok {
		t.Error("expected dependency manifest to be registered")
	}
}

func TestManifest_ReloadRescans(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	f.ft.
		Serve(base+"app/manifest.js", `module([])`).
		Serve(base+"extra/manifest.js", ``)

	m, err := f.resolver.GetManifest("~/app/manifest.js")
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	m.Core().Start()
	f.mustRun(t)
	if len(m.Dependencies()) != 0 {
		t.Fatalf("expected no deps, got %v", m.Dependencies())
	}

	f.ft.Serve(base+"app/manifest.js", `module(["extra"])`)
	m.Reload(false)
	f.mustRun(t)

	if diff := cmp.Diff([]module.Name{"extra"}, m.Dependencies()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if m.Core().Status() != resource.StatusReady {
		t.Errorf("expected ready after reload, got %s", m.Core().Status())
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    module.Name
		valid   bool
		wantDir string
	}{
		{"app", true, "app"},
		{"app.ui.forms", true, "app/ui/forms"},
		{"_priv.x1", true, "_priv/x1"},
		{"", false, ""},
		{"a..b", false, "a//b"},
		{"1app", false, "1app"},
		{"a-b", false, "a-b"},
	}
	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			t.Parallel()
			err := tt.name.Validate()
			if (err == nil) != tt.valid {
				t.Errorf("Validate(%q) = %v, want valid=%v", tt.name, err, tt.valid)
			}
			if tt.name.Path() != tt.wantDir {
				t.Errorf("Path(%q) = %q, want %q", tt.name, tt.name.Path(), tt.wantDir)
			}
		})
	}
}
