// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
)

func quietLogger() *log.Logger { return log.New(io.Discard) }

// startWatcher runs w until the test ends and reports Run's result.
func startWatcher(t *testing.T, w *Watcher) (cancel func(), errCh <-chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	ch := make(chan error, 1)
	go func() { ch <- w.Run(ctx) }()
	t.Cleanup(cancelFn)
	// Let the event loop start before the test writes files.
	time.Sleep(50 * time.Millisecond)
	return cancelFn, ch
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWatcherDebounce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var (
		mu        sync.Mutex
		calls     int
		collected []string
	)
	done := make(chan struct{})

	w, err := New(Config{
		BaseDir:  dir,
		Debounce: 100 * time.Millisecond,
		Logger:   quietLogger(),
		OnChange: func(_ context.Context, changed []string) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			collected = append(collected, changed...)
			if calls == 1 {
				close(done)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cancel, errCh := startWatcher(t, w)

	for _, name := range []string{"a.js", "b.js", "c.js"} {
		writeFile(t, filepath.Join(dir, name), "x")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	time.Sleep(200 * time.Millisecond)
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected 1 debounced callback, got %d", calls)
	}
	for _, want := range []string{"a.js", "b.js", "c.js"} {
		if !slices.Contains(collected, want) {
			t.Errorf("expected %q in changed files, got %v", want, collected)
		}
	}
}

func TestWatcherFiltering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fired := make(chan []string, 10)

	w, err := New(Config{
		BaseDir:  dir,
		Patterns: []string{"**/*.js"},
		Ignore:   []string{"**/dist/**"},
		Debounce: 50 * time.Millisecond,
		Logger:   quietLogger(),
		OnChange: func(_ context.Context, changed []string) error {
			fired <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cancel, errCh := startWatcher(t, w)

	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored by pattern")
	writeFile(t, filepath.Join(dir, "dist", "bundle.js"), "ignored by path")
	time.Sleep(200 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "lib", "core.js"), "watched")
	time.Sleep(20 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "lib", "core.js"), "watched again")

	select {
	case changed := <-fired:
		if diff := cmp.Diff([]string{"lib/core.js"}, changed); diff != "" {
			t.Errorf("changed set mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestWatcherContextCancel(t *testing.T) {
	t.Parallel()

	w, err := New(Config{BaseDir: t.TempDir(), Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cancel, errCh := startWatcher(t, w)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() returned error on cancel: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

func TestWatcherDoubleRun(t *testing.T) {
	t.Parallel()

	w, err := New(Config{BaseDir: t.TempDir(), Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cancel, errCh := startWatcher(t, w)

	if err := w.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("first Run() returned error: %v", err)
	}
}

func TestWatcherInvalidPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantMsg string
	}{
		{"bad watch glob", Config{Patterns: []string{"[invalid"}}, "invalid watch pattern"},
		{"empty watch glob", Config{Patterns: []string{""}}, "invalid watch pattern"},
		{"bad ignore glob", Config{Ignore: []string{"{a,b"}}, "invalid ignore pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			cfg.BaseDir = t.TempDir()
			_, err := New(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("New() = %v, want error containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		ignored bool
	}{
		{".git/config", true},
		{"node_modules/lodash/index.js", true},
		{"app/main.js.swp", true},
		{"backup~", true},
		{"sub/.DS_Store", true},
		{"app/main.js", false},
		{"manifest.js", false},
		{".gitignore", false},
	}
	for _, tt := range tests {
		if got := matchAny(DefaultIgnores(), tt.path); got != tt.ignored {
			t.Errorf("default ignores on %q = %v, want %v", tt.path, got, tt.ignored)
		}
	}
}
