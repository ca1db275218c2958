// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/corext/corext/internal/dag"
	"github.com/corext/corext/pkg/module"
	"github.com/corext/corext/pkg/resource"
)

func TestValues_OrderedAndComplete(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(WatchLimitId) {
		t.Fatalf("expected %d issues, got %d", WatchLimitId, len(values))
	}
	for i, iss := range values {
		if iss.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d", i, iss.Id())
		}
		if strings.TrimSpace(string(iss.MarkdownMsg())) == "" {
			t.Errorf("issue %d has no message", iss.Id())
		}
	}
}

func TestIssue_SuggestionsAreCopies(t *testing.T) {
	t.Parallel()

	iss := Get(DependencyCycleId)
	s := iss.Suggestions()
	s[0] = "mutated"
	if iss.Suggestions()[0] == "mutated" {
		t.Error("Suggestions() must return a copy")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	iss := &Issue{
		id:       TimeoutId,
		mdMsg:    "# Slow",
		docLinks: []HttpLink{"https://example.test/docs/timeout"},
	}
	out, err := iss.Render("notty")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"Slow", "See also", "https://example.test/docs/timeout"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered page should contain %q:\n%s", want, out)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Id
	}{
		{"nil", nil, 0},
		{"unrelated", errors.New("x"), 0},
		{"not found", &resource.HTTPStatusError{URL: "u", StatusCode: 404}, ResourceNotFoundId},
		{"transport", fmt.Errorf("%w: refused", resource.ErrTransport), TransportFailedId},
		{"timeout", resource.ErrTimeout, TimeoutId},
		{"aborted", resource.ErrAborted, AbortedId},
		{"type mismatch", &resource.TypeMismatchError{URL: "u"}, TypeMismatchId},
		{"unknown type", resource.ErrUnknownType, UnknownTypeId},
		{"cycle inside handler", fmt.Errorf("%w: %w", resource.ErrHandlerFailed, &dag.CycleError{Cycle: []string{"a", "a"}}), DependencyCycleId},
		{"execution", fmt.Errorf("executing app: %w: %w", module.ErrExecutionFailed, errors.New("ReferenceError")), ScriptExecutionFailedId},
		{"handler", fmt.Errorf("%w: boom", resource.ErrHandlerFailed), HandlerFailedId},
		{"load error", &resource.LoadError{URL: "u", Err: resource.ErrTimeout}, TimeoutId},
		{"config", NewErrorContext().WithOperation(OpLoadConfig).Wrap(errors.New("bad")).BuildError(), ConfigLoadFailedId},
		{"cache", NewErrorContext().WithOperation(OpOpenCache).BuildError(), CacheUnavailableId},
		{"watch", fmt.Errorf("load: %w", NewErrorContext().WithOperation(OpWatch).BuildError()), WatchLimitId},
		{"resolve wraps cycle", WrapWithContext(&dag.CycleError{Cycle: []string{"a", "b", "a"}}, OpResolveManifests, "~/app/manifest.js"), DependencyCycleId},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
