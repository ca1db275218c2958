// SPDX-License-Identifier: MPL-2.0

package module

import (
	"regexp"
	"slices"
	"testing"
)

func TestCallExtractor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want []Name
	}{
		{"none", "var x = 1;", nil},
		{"empty list", "module([], function(){})", nil},
		{"mixed quotes", "module([ \"a.b\", 'c', `d.e` ], fn)", []Name{"a.b", "c", "d.e"}},
		{"multiline list", "module([\n  'a',\n  'b'\n], fn)", []Name{"a", "b"}},
		{"several calls deduplicated", "module(['a']);\nmodule(['b', 'a']);", []Name{"a", "b"}},
		{"unquoted tokens ignored", "module([deps, 'x'])", []Name{"x"}},
		{"spaces before bracket", "module(   ['z'])", []Name{"z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := CallExtractor{}.Extract(tt.body)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestCallExtractor_CustomPattern(t *testing.T) {
	t.Parallel()
	e := CallExtractor{Pattern: regexp.MustCompile(`require\(\s*\[([^\]]*)\]`)}
	got := e.Extract("require(['x.y']); module(['ignored'])")
	if !slices.Equal(got, []Name{"x.y"}) {
		t.Errorf("got %v", got)
	}
}

func TestDirectiveExtractor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		keyword string
		body    string
		want    []Name
	}{
		{"plain", "", "module a b\necho ok", []Name{"a", "b"}},
		{"comment marker", "", "# module lib.x\n", []Name{"lib.x"}},
		{"trailing comment", "", "module a # b is optional\n", []Name{"a"}},
		{"keyword alone", "", "module\n", nil},
		{"other keyword", "requires", "requires a\nmodule b", []Name{"a"}},
		{"indented", "", "   module  a   a  c", []Name{"a", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := DirectiveExtractor{Keyword: tt.keyword}.Extract(tt.body)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestManifestName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want Name
	}{
		{"~/app/manifest.js", "app"},
		{"~/lib/ui/manifest.js", "lib.ui"},
		{"~/app.js", "app"},
		{"~/manifest.js", "root"},
		{"http://cdn.test/pkg/v1/manifest.js?x=1", "pkg.v1"},
		{"~/my-app/2024/manifest.js", "my_app._2024"},
		{"../up/manifest.js", "up"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got := manifestName(tt.path, DefaultManifestFile)
			if got != tt.want {
				t.Errorf("manifestName(%q) = %q, want %q", tt.path, got, tt.want)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("derived name is invalid: %v", err)
			}
		})
	}
}
