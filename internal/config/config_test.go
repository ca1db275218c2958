// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/corext/corext/internal/issue"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func isolated(t *testing.T) LoadOptions {
	t.Helper()
	return LoadOptions{ConfigDirPath: t.TempDir(), SkipWorkingDir: true}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, src, err := NewProvider().LoadWithSource(context.Background(), isolated(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src != "" {
		t.Errorf("expected no source file, got %q", src)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
base_url: "https://cdn.example.test/app/"
version: "2.1.0"
timeout: "45s"
log_level: "debug"
core_scripts: ["~/core/system.js", "~/core/types.js"]
app_manifest: "~/app/manifest.js"
app_module: {
	name: "app.main"
	url: "~/app/main.js"
	minified_url: "~/app/main.min.js"
}
cache: {
	driver: "bolt"
	path: "/var/cache/corext.db"
	size: 64
}
watch: debounce: "1s"
`)
	cfg, src, err := NewProvider().LoadWithSource(context.Background(), LoadOptions{
		ConfigDirPath:  filepath.Dir(path),
		SkipWorkingDir: true,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src != path {
		t.Errorf("source = %q, want %q", src, path)
	}

	want := DefaultConfig()
	want.BaseURL = "https://cdn.example.test/app/"
	want.Version = "2.1.0"
	want.Timeout = 45 * time.Second
	want.LogLevel = LogLevelDebug
	want.CoreScripts = []string{"~/core/system.js", "~/core/types.js"}
	want.AppManifest = "~/app/manifest.js"
	want.AppModule = AppModuleConfig{Name: "app.main", URL: "~/app/main.js", MinifiedURL: "~/app/main.min.js"}
	want.Cache = CacheConfig{Driver: CacheDriverBolt, Path: "/var/cache/corext.db", Size: 64}
	want.Watch.Debounce = time.Second
	if diff := cmp.Diff(want, cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"unknown driver", `cache: driver: "redis"`, "cache.driver"},
		{"unknown field", `colour: "red"`, "colour"},
		{"bad duration", `timeout: "soon"`, "timeout"},
		{"bad module name", `app_module: {name: "1app", url: "~/a.js"}`, "app_module.name"},
		{"relative base url", `base_url: "/app/"`, "base_url"},
		{"syntax", `debug: `, "config.cue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, tt.content)
			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("expected an error")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) || ae.Operation != issue.OpLoadConfig {
				t.Fatalf("expected actionable load error, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_SemanticValidation(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `cache: driver: "s3"`)
	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, ErrInvalidCacheConfig) {
		t.Fatalf("expected invalid cache config, got %v", err)
	}
	if issue.Classify(err) != issue.ConfigLoadFailedId {
		t.Errorf("expected config issue, got %d", issue.Classify(err))
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, isolated(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
cache: driver: "memory"
log_level: "warn"
`)
	t.Setenv("COREXT_CACHE_DRIVER", "bolt")
	t.Setenv("COREXT_CACHE_PATH", "/tmp/env.db")
	t.Setenv("COREXT_DEBUG", "true")
	t.Setenv("COREXT_TIMEOUT", "2s")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Driver != CacheDriverBolt || cfg.Cache.Path != "/tmp/env.db" {
		t.Errorf("env should override the file, got %+v", cfg.Cache)
	}
	if !cfg.Debug || cfg.Timeout != 2*time.Second {
		t.Errorf("env should override defaults, got debug=%v timeout=%s", cfg.Debug, cfg.Timeout)
	}
	if cfg.LogLevel != LogLevelWarn {
		t.Errorf("file value should survive, got %s", cfg.LogLevel)
	}
}

func TestConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigDirEnv, dir)

	got, err := ConfigDir()
	if err != nil || got != dir {
		t.Fatalf("ConfigDir() = %q, %v; want %q", got, err, dir)
	}

	path, err := WriteDefault("", false)
	if err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("default config written to %q, want it under %q", path, dir)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.BaseURL = "http://localhost:8080/"
	cfg.CoreScripts = []string{"~/core/system.js"}
	cfg.AppManifest = "~/app/manifest.js"
	cfg.AppModule = AppModuleConfig{Name: "app.main", URL: "~/app/main.js"}
	cfg.Cache = CacheConfig{
		Driver: CacheDriverS3,
		Size:   16,
		S3:     S3Config{Endpoint: "localhost:9000", Bucket: "corext", Prefix: "v1/"},
	}
	cfg.MetricsFile = "/tmp/corext.prom"

	path := writeConfig(t, GenerateCUE(cfg))
	got, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("generated config should load: %v\n%s", err, GenerateCUE(cfg))
	}
	if diff := cmp.Diff(cfg, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteDefault_KeepsExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.cue")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteDefault(dir, false); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "debug: true\n" {
		t.Errorf("existing file overwritten: %q", data)
	}
	if _, err := WriteDefault(dir, true); err != nil {
		t.Fatalf("WriteDefault(force): %v", err)
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "watch: {") {
		t.Errorf("forced write should contain defaults, got %q", data)
	}
}
