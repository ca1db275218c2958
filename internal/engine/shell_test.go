// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/corext/corext/internal/testutil"
	"github.com/corext/corext/pkg/module"
)

func newTestShell(stdout *bytes.Buffer, opts ...ShellOption) *Shell {
	var stderr bytes.Buffer
	base := []ShellOption{
		WithShellEnv([]string{"PATH=/usr/bin:/bin", "INHERITED=yes"}),
		WithShellIO(stdout, &stderr),
		WithExternalCommands(false),
	}
	return NewShell(append(base, opts...)...)
}

func shSource(name, code string) module.Source {
	return module.Source{Name: module.Name(name), URL: "http://example.test/" + name + ".sh", Code: code}
}

func TestShell_ExportsAndVars(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	scope, err := newTestShell(&out).Execute(context.Background(), shSource("lib.env", `
module lib.core
local_only=1
export GREETING="hello world"
export INHERITED=yes
arr=(a b)
echo "ran $GREETING"
`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if diff := cmp.Diff(map[string]any{"GREETING": "hello world"}, scope.Exports()); diff != "" {
		t.Errorf("exports mismatch (-want +got):\n%s", diff)
	}
	if v, ok := scope.GetVar("local_only"); !ok || v != "1" {
		t.Errorf("GetVar(local_only) = %v, %v", v, ok)
	}
	if v, _ := scope.GetVar("arr"); !cmp.Equal(v, []string{"a", "b"}) {
		t.Errorf("GetVar(arr) = %v", v)
	}
	if err := scope.SetVar("local_only", 2); err != nil {
		t.Fatalf("SetVar: %v", err)
	}
	if v, _ := scope.GetVar("local_only"); v != "2" {
		t.Errorf("GetVar after SetVar = %v", v)
	}
	if got := out.String(); got != "ran hello world\n" {
		t.Errorf("stdout = %q", got)
	}
}

func TestShell_Imports(t *testing.T) {
	t.Parallel()

	src := shSource("app.main", `export SEEN="$LIB_CORE_GREET, it's $LIB_CORE_WHO"`)
	src.Imports = map[module.Name]module.Scope{
		"lib.core": testutil.NewMapScope(map[string]any{"greet": "hi", "who": "me & you"}),
	}

	var out bytes.Buffer
	scope, err := newTestShell(&out).Execute(context.Background(), src)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"SEEN": "hi, it's me & you"}, scope.Exports()); diff != "" {
		t.Errorf("exports mismatch (-want +got):\n%s", diff)
	}
}

func TestShell_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    string
		wantMsg string
	}{
		{"syntax", `if then`, "failed to parse"},
		{"exit status", `exit 3`, "status 3"},
		{"external disabled", `ls /`, "status 127"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			_, err := newTestShell(&out).Execute(context.Background(), shSource("bad", tt.code))
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestShell_GlobalScopeShared(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	e := newTestShell(&out)
	first := shSource("first", `shared=one`)
	first.Global = true
	if _, err := e.Execute(context.Background(), first); err != nil {
		t.Fatalf("Execute(first): %v", err)
	}

	second := shSource("second", `echo "global:${shared:-none}"`)
	second.Global = true
	if _, err := e.Execute(context.Background(), second); err != nil {
		t.Fatalf("Execute(second): %v", err)
	}
	if _, err := e.Execute(context.Background(), shSource("third", `echo "isolated:${shared:-none}"`)); err != nil {
		t.Fatalf("Execute(third): %v", err)
	}
	if got := out.String(); got != "global:one\nisolated:none\n" {
		t.Errorf("stdout = %q", got)
	}
}

func TestEnvName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dep  module.Name
		key  string
		want string
	}{
		{"lib.core", "value", "LIB_CORE_VALUE"},
		{"app", "Ready", "APP_READY"},
		{"lib.x-y", "a.b", "LIB_X_Y_A_B"},
	}
	for _, tt := range tests {
		if got := EnvName(tt.dep, tt.key); got != tt.want {
			t.Errorf("EnvName(%q, %q) = %q, want %q", tt.dep, tt.key, got, tt.want)
		}
	}
}
