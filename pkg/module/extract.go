// SPDX-License-Identifier: MPL-2.0

package module

import (
	"bufio"
	"regexp"
	"strings"
)

var (
	// DefaultCallPattern matches calls of the shape module([deps...], ...). The first
	// submatch is the bracketed dependency list.
	DefaultCallPattern = regexp.MustCompile(`module\(\s*\[([^\]]*)\]`)

	quotedToken = regexp.MustCompile("[\"'`]([^\"'`]+)[\"'`]")
)

type (
	// DependencyExtractor scans a manifest body for dependency names. Scanning is
	// textual; implementations may be swapped without touching the Resolver.
	DependencyExtractor interface {
		Extract(body string) []Name
	}

	// ExtractorFunc adapts a function to the DependencyExtractor interface.
	ExtractorFunc func(body string) []Name

	// CallExtractor finds module([...]) calls and reads the quoted names inside the
	// brackets. Unquoted tokens are ignored.
	CallExtractor struct {
		// Pattern overrides DefaultCallPattern. Its first submatch must be the list.
		Pattern *regexp.Regexp
	}

	// DirectiveExtractor reads line directives of the form "module dep1 dep2".
	// Leading whitespace and a "#" comment marker before the keyword are allowed.
	DirectiveExtractor struct {
		// Keyword overrides the default "module" directive.
		Keyword string
	}
)

// Extract implements DependencyExtractor.
func (f ExtractorFunc) Extract(body string) []Name {
	return f(body)
}

// Extract implements DependencyExtractor.
func (e CallExtractor) Extract(body string) []Name {
	pattern := e.Pattern
	if pattern == nil {
		pattern = DefaultCallPattern
	}
	var deps []Name
	for _, call := range pattern.FindAllStringSubmatch(body, -1) {
		if len(call) < 2 {
			continue
		}
		for _, tok := range quotedToken.FindAllStringSubmatch(call[1], -1) {
			deps = append(deps, Name(strings.TrimSpace(tok[1])))
		}
	}
	return dedupe(deps)
}

// Extract implements DependencyExtractor.
func (e DirectiveExtractor) Extract(body string) []Name {
	keyword := e.Keyword
	if keyword == "" {
		keyword = "module"
	}
	var deps []Name
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimSpace(strings.TrimPrefix(line, "#"))
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != keyword {
			continue
		}
		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "#") {
				break
			}
			deps = append(deps, Name(f))
		}
	}
	return dedupe(deps)
}

func dedupe(deps []Name) []Name {
	if len(deps) == 0 {
		return nil
	}
	seen := make(map[Name]bool, len(deps))
	out := deps[:0]
	for _, d := range deps {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
