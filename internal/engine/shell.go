// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/corext/corext/pkg/module"
)

// captureCommand is run after a module body to snapshot the interpreter
// variables. It never reaches the host.
const captureCommand = "__corext_capture_scope"

// ErrExternalCommand is returned when a shell module runs a host command while
// external commands are disabled.
var ErrExternalCommand = errors.New("external commands are disabled")

type (
	// Shell evaluates POSIX shell module bodies in-process.
	//
	// Parent exports are visible as exported variables named after the parent
	// module: the `value` export of `lib.core` is `$LIB_CORE_VALUE`. Variables
	// the module exports become its own exports. The `module` command is the
	// dependency directive and does nothing at run time.
	Shell struct {
		logger        *log.Logger
		dir           string
		env           []string
		stdout        io.Writer
		stderr        io.Writer
		allowExternal bool

		mu     sync.Mutex
		shared *interp.Runner
	}

	// ShellOption configures a Shell engine.
	ShellOption func(*Shell)

	shellScope struct {
		mu       sync.RWMutex
		vars     map[string]expand.Variable
		exported []string
	}

	captureKey struct{}
)

// WithShellLogger sets the engine logger.
func WithShellLogger(l *log.Logger) ShellOption {
	return func(e *Shell) { e.logger = l }
}

// WithShellDir sets the working directory modules run in.
func WithShellDir(dir string) ShellOption {
	return func(e *Shell) { e.dir = dir }
}

// WithShellEnv sets the base environment. It defaults to the process
// environment.
func WithShellEnv(env []string) ShellOption {
	return func(e *Shell) { e.env = env }
}

// WithShellIO sets where module output goes.
func WithShellIO(stdout, stderr io.Writer) ShellOption {
	return func(e *Shell) { e.stdout, e.stderr = stdout, stderr }
}

// WithExternalCommands controls whether modules may run host binaries.
func WithExternalCommands(allow bool) ShellOption {
	return func(e *Shell) { e.allowExternal = allow }
}

// NewShell creates a shell engine.
func NewShell(opts ...ShellOption) *Shell {
	e := &Shell{
		logger:        log.Default(),
		env:           os.Environ(),
		stdout:        os.Stdout,
		stderr:        os.Stderr,
		allowExternal: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements module.Executor.
func (e *Shell) Execute(ctx context.Context, src module.Source) (module.Scope, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(src.Code), src.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", src.URL, err)
	}
	prelude, importNames, err := importPrelude(src.Imports)
	if err != nil {
		return nil, err
	}
	capture, err := syntax.NewParser().Parse(strings.NewReader(captureCommand), "capture")
	if err != nil {
		return nil, err
	}

	var runner *interp.Runner
	if src.Global {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.shared == nil {
			if e.shared, err = e.newRunner(); err != nil {
				return nil, err
			}
		}
		runner = e.shared
	} else if runner, err = e.newRunner(); err != nil {
		return nil, err
	}

	scope := &shellScope{}
	ctx = context.WithValue(ctx, captureKey{}, scope)

	if prelude != nil {
		if err := runner.Run(ctx, prelude); err != nil {
			return nil, fmt.Errorf("failed to bind imports for %s: %w", src.URL, err)
		}
	}
	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return nil, fmt.Errorf("%s exited with status %d", src.URL, uint8(status))
		}
		return nil, fmt.Errorf("script execution failed: %w", err)
	}
	if runner.Exited() {
		e.logger.Debug("shell module exited early", "url", src.URL)
	} else if err := runner.Run(ctx, capture); err != nil {
		return nil, err
	}

	scope.markExports(e.env, importNames)
	return scope, nil
}

func (e *Shell) newRunner() (*interp.Runner, error) {
	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(e.env...)),
		interp.StdIO(nil, e.stdout, e.stderr),
		interp.ExecHandlers(e.execHandler),
	}
	if e.dir != "" {
		opts = append(opts, interp.Dir(e.dir))
	}
	runner, err := interp.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}
	return runner, nil
}

// execHandler intercepts the module directive and the scope capture before
// falling back to host commands.
func (e *Shell) execHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return next(ctx, args)
		}
		switch args[0] {
		case "module":
			return nil
		case captureCommand:
			if scope, ok := ctx.Value(captureKey{}).(*shellScope); ok {
				scope.capture(interp.HandlerCtx(ctx).Env)
			}
			return nil
		}
		if !e.allowExternal {
			hc := interp.HandlerCtx(ctx)
			fmt.Fprintf(hc.Stderr, "%s: %v\n", args[0], ErrExternalCommand)
			return interp.NewExitStatus(127)
		}
		return next(ctx, args)
	}
}

// importPrelude builds `export` statements binding parent exports.
func importPrelude(imports map[module.Name]module.Scope) (*syntax.File, map[string]bool, error) {
	if len(imports) == 0 {
		return nil, nil, nil
	}
	names := make(map[string]bool)
	var b strings.Builder
	for _, dep := range slices.Sorted(maps.Keys(imports)) {
		scope := imports[dep]
		if scope == nil {
			continue
		}
		exports := scope.Exports()
		for _, key := range slices.Sorted(maps.Keys(exports)) {
			name := EnvName(dep, key)
			quoted, err := syntax.Quote(fmt.Sprint(exports[key]), syntax.LangBash)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to bind %s.%s: %w", dep, key, err)
			}
			names[name] = true
			fmt.Fprintf(&b, "export %s=%s\n", name, quoted)
		}
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(b.String()), "imports")
	if err != nil {
		return nil, nil, err
	}
	return prog, names, nil
}

// EnvName returns the variable a parent export is bound to in shell modules.
func EnvName(dep module.Name, key string) string {
	mapper := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}
	return strings.Map(mapper, string(dep)) + "_" + strings.Map(mapper, key)
}

func (s *shellScope) capture(env expand.Environ) {
	vars := make(map[string]expand.Variable)
	env.Each(func(name string, vr expand.Variable) bool {
		if vr.IsSet() {
			vars[name] = vr
		}
		return true
	})
	s.mu.Lock()
	s.vars = vars
	s.mu.Unlock()
}

func (s *shellScope) markExports(base []string, imports map[string]bool) {
	inherited := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			inherited[k] = v
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exported = s.exported[:0]
	for name, vr := range s.vars {
		if !vr.Exported || imports[name] {
			continue
		}
		if v, ok := inherited[name]; ok && v == vr.String() {
			continue
		}
		s.exported = append(s.exported, name)
	}
}

func (s *shellScope) Exports() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.exported))
	for _, name := range s.exported {
		out[name] = variableValue(s.vars[name])
	}
	return out
}

func (s *shellScope) GetVar(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vr, ok := s.vars[name]
	if !ok {
		return nil, false
	}
	return variableValue(vr), true
}

// SetVar rebinds a captured variable. Shell state is not reachable once the
// body has run, so the new value is only visible through this scope.
func (s *shellScope) SetVar(name string, value any) error {
	vr := expand.Variable{Set: true, Kind: expand.String}
	switch v := value.(type) {
	case []string:
		vr.Kind, vr.List = expand.Indexed, slices.Clone(v)
	case map[string]string:
		vr.Kind, vr.Map = expand.Associative, maps.Clone(v)
	default:
		vr.Str = fmt.Sprint(v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vars == nil {
		s.vars = make(map[string]expand.Variable)
	}
	vr.Exported = s.vars[name].Exported
	s.vars[name] = vr
	return nil
}

func variableValue(vr expand.Variable) any {
	switch vr.Kind {
	case expand.Indexed:
		return slices.Clone(vr.List)
	case expand.Associative:
		return maps.Clone(vr.Map)
	default:
		return vr.Str
	}
}
