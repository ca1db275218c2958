// SPDX-License-Identifier: MPL-2.0

package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestConfigFlatten(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CoreScripts = []string{"~/a.js", "~/b.js"}
	cfg.Timeout = 90 * time.Second
	cfg.Cache.S3.SecretKey = "hunter2"

	keys, values := cfg.Flatten()
	want := map[string]string{
		"timeout":             "1m30s",
		"core_scripts":        "[~/a.js, ~/b.js]",
		"cache.driver":        "none",
		"cache.s3.secret_key": "********",
		"watch.debounce":      "250ms",
		"app_manifest":        "",
	}
	for k, v := range want {
		if values[k] != v {
			t.Errorf("%s = %q, want %q", k, values[k], v)
		}
	}
	if len(keys) != len(values) {
		t.Fatalf("keys and values disagree: %d vs %d", len(keys), len(values))
	}
	if keys[0] != "app_manifest" {
		t.Errorf("keys should be sorted, first is %q", keys[0])
	}
}

func TestConfigMap_EmptyListsAreNotNil(t *testing.T) {
	t.Parallel()

	m := (&Config{}).Map()
	if diff := cmp.Diff([]string{}, m["core_scripts"]); diff != "" {
		t.Errorf("core_scripts mismatch (-want +got):\n%s", diff)
	}
}
