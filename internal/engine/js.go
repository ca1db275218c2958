// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"

	"github.com/corext/corext/pkg/module"
)

type (
	// JS evaluates JavaScript module bodies.
	//
	// Every module body sees three bindings: an `exports` object it publishes
	// values on, an `imports` object keyed by parent module name, and the
	// `module(deps, fn)` builtin which calls fn with the exports of the named
	// dependencies as positional arguments. An object returned by fn is merged
	// into exports. Isolated modules get a fresh runtime; global modules share
	// one runtime so top-level declarations leak into later global modules.
	JS struct {
		logger *log.Logger

		mu     sync.Mutex
		shared *goja.Runtime
	}

	// JSOption configures a JS engine.
	JSOption func(*JS)

	jsScope struct {
		rt      *goja.Runtime
		exports *goja.Object
	}
)

// WithJSLogger sets the logger console output is written to.
func WithJSLogger(l *log.Logger) JSOption {
	return func(e *JS) { e.logger = l }
}

// NewJS creates a JavaScript engine.
func NewJS(opts ...JSOption) *JS {
	e := &JS{logger: log.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements module.Executor.
func (e *JS) Execute(ctx context.Context, src module.Source) (module.Scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rt := goja.New()
	if src.Global {
		// The shared runtime is not goroutine safe. Execution normally happens
		// on the event loop, the lock covers direct callers.
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.shared == nil {
			e.shared = goja.New()
			e.installConsole(e.shared)
		}
		rt = e.shared
	} else {
		e.installConsole(rt)
	}

	exports := rt.NewObject()
	imports := rt.NewObject()
	for name, scope := range src.Imports {
		if scope == nil {
			continue
		}
		if err := imports.Set(string(name), scope.Exports()); err != nil {
			return nil, err
		}
	}
	if err := rt.Set("exports", exports); err != nil {
		return nil, err
	}
	if err := rt.Set("imports", imports); err != nil {
		return nil, err
	}
	if err := rt.Set("module", moduleBuiltin(rt, exports, imports)); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { rt.Interrupt(ctx.Err()) })
	defer stop()
	defer rt.ClearInterrupt()

	if _, err := rt.RunScript(src.URL, src.Code); err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", src.URL, err)
	}
	return &jsScope{rt: rt, exports: exports}, nil
}

func (e *JS) installConsole(rt *goja.Runtime) {
	logger := e.logger
	console := rt.NewObject()
	logFn := func(level log.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]any, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				args = append(args, a.String())
			}
			logger.Log(level, fmt.Sprint(args...))
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logFn(log.InfoLevel))
	_ = console.Set("info", logFn(log.InfoLevel))
	_ = console.Set("debug", logFn(log.DebugLevel))
	_ = console.Set("warn", logFn(log.WarnLevel))
	_ = console.Set("error", logFn(log.ErrorLevel))
	_ = rt.Set("console", console)
}

// moduleBuiltin implements module(deps, fn). Either argument may be omitted:
// manifests usually call it with the dependency list alone.
func moduleBuiltin(rt *goja.Runtime, exports, imports *goja.Object) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		depsArg, fnArg := call.Argument(0), call.Argument(1)
		if _, ok := goja.AssertFunction(depsArg); ok {
			depsArg, fnArg = goja.Undefined(), depsArg
		}
		fn, ok := goja.AssertFunction(fnArg)
		if !ok {
			return goja.Undefined()
		}

		var deps []string
		if !goja.IsUndefined(depsArg) && !goja.IsNull(depsArg) {
			obj, ok := depsArg.(*goja.Object)
			if !ok || obj.ClassName() != "Array" {
				panic(rt.NewTypeError("module: dependency list must be an array of names"))
			}
			if err := rt.ExportTo(depsArg, &deps); err != nil {
				panic(rt.NewTypeError("module: dependency list must be an array of names"))
			}
		}
		args := make([]goja.Value, 0, len(deps))
		for _, dep := range deps {
			args = append(args, imports.Get(dep))
		}

		ret, err := fn(goja.Undefined(), args...)
		if err != nil {
			if ex, ok := err.(*goja.Exception); ok {
				panic(ex.Value())
			}
			panic(rt.NewGoError(err))
		}
		if obj, ok := ret.(*goja.Object); ok {
			for _, k := range obj.Keys() {
				_ = exports.Set(k, obj.Get(k))
			}
		}
		return ret
	}
}

func (s *jsScope) Exports() map[string]any {
	out := make(map[string]any, len(s.exports.Keys()))
	for _, k := range s.exports.Keys() {
		out[k] = s.exports.Get(k).Export()
	}
	return out
}

func (s *jsScope) GetVar(name string) (any, bool) {
	v := s.rt.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	return v.Export(), true
}

func (s *jsScope) SetVar(name string, value any) error {
	return s.rt.Set(name, value)
}
