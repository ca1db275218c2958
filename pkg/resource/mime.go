// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"mime"
	"path"
	"strings"
	"sync"
)

const (
	// TypeJavaScript is the canonical type for script modules.
	TypeJavaScript = "application/javascript"
	// TypeShell is the canonical type for shell modules.
	TypeShell = "application/x-sh"
	// TypeJSON is the canonical type for JSON documents.
	TypeJSON = "application/json"
	// TypeText is plain text.
	TypeText = "text/plain"
	// TypeOctetStream is accepted in place of any declared type.
	TypeOctetStream = "application/octet-stream"
)

var (
	typesMu sync.RWMutex

	extensionTypes = map[string]string{
		".js":   TypeJavaScript,
		".mjs":  TypeJavaScript,
		".json": TypeJSON,
		".map":  TypeJSON,
		".sh":   TypeShell,
		".css":  "text/css",
		".htm":  "text/html",
		".html": "text/html",
		".txt":  TypeText,
		".xml":  "application/xml",
		".cue":  "application/cue",
		".svg":  "image/svg+xml",
		".png":  "image/png",
		".gif":  "image/gif",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
	}

	// typeAliases maps legacy or alternative spellings to canonical types.
	typeAliases = map[string]string{
		"text/javascript":           TypeJavaScript,
		"application/x-javascript":  TypeJavaScript,
		"application/ecmascript":    TypeJavaScript,
		"text/ecmascript":           TypeJavaScript,
		"text/json":                 TypeJSON,
		"text/xml":                  "application/xml",
		"text/x-sh":                 TypeShell,
		"application/x-shellscript": TypeShell,
		"text/x-shellscript":        TypeShell,
	}
)

// TypeForExtension returns the resource type registered for a file extension
// (including the leading dot).
func TypeForExtension(ext string) (string, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()
	t, ok := extensionTypes[strings.ToLower(ext)]
	return t, ok
}

// RegisterType adds or replaces the type for a file extension.
func RegisterType(ext, typ string) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	typesMu.Lock()
	extensionTypes[strings.ToLower(ext)] = CanonicalType(typ)
	typesMu.Unlock()
}

// InferType infers the type of a URL or path from its extension.
func InferType(rawURL string) (string, bool) {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return TypeForExtension(path.Ext(p))
}

// CanonicalType strips parameters, lowercases, and resolves aliases.
func CanonicalType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		t = mt
	}
	t = strings.ToLower(t)
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}

// TypesMatch reports whether a received content type satisfies the declared one.
// An empty or octet-stream received type is accepted; file transports and many
// static servers do not report precise types.
func TypesMatch(declared, received string) bool {
	received = CanonicalType(received)
	if received == "" || received == TypeOctetStream || declared == "" {
		return true
	}
	return CanonicalType(declared) == received
}

func isTextual(t string) bool {
	t = CanonicalType(t)
	switch {
	case strings.HasPrefix(t, "text/"):
		return true
	case t == TypeJavaScript, t == TypeJSON, t == TypeShell, t == "application/xml", t == "application/cue", t == "image/svg+xml":
		return true
	default:
		return false
	}
}
