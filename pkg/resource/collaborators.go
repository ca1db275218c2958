// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"context"
	"time"
)

const (
	// SourceNetwork marks payloads delivered by the Transport.
	SourceNetwork Source = "network"
	// SourceCache marks payloads served from the persistent Cache.
	SourceCache Source = "cache"
)

type (
	// Source identifies where a payload came from.
	Source string

	// FetchRequest describes a single transfer.
	FetchRequest struct {
		// URL is the normalized URL, including any cache-busting query parameter.
		URL string
		// Type is the declared resource type.
		Type string
		// Async is false for transfers the caller waits on inline.
		Async bool
	}

	// Payload is the result of a successful transfer.
	Payload struct {
		Data []byte
		// Type is the content type reported by the transport; empty if unknown.
		Type string
		// StatusCode is the protocol status (HTTP code, or 200 for files).
		StatusCode int
	}

	// Transport fetches bytes for a URL. Implementations must honor ctx
	// cancellation (abort) and deadlines (timeout) and may call progress with the
	// loaded ratio (0..1) from any goroutine.
	Transport interface {
		Fetch(ctx context.Context, req FetchRequest, progress func(ratio float64)) (*Payload, error)
	}

	// TransportFunc adapts a function to the Transport interface.
	TransportFunc func(ctx context.Context, req FetchRequest, progress func(ratio float64)) (*Payload, error)

	// Cache is a best-effort read-through store keyed by URL and version.
	// It is never authoritative: misses and failures fall back to the Transport.
	Cache interface {
		Get(ctx context.Context, key string) ([]byte, bool, error)
		Set(ctx context.Context, key string, data []byte) error
	}

	// Observer receives lifecycle events, typically for metrics.
	Observer interface {
		FetchCompleted(url string, source Source, size int, elapsed time.Duration, err error)
		StatusChanged(url string, from, to Status)
	}
)

// Fetch implements Transport.
func (f TransportFunc) Fetch(ctx context.Context, req FetchRequest, progress func(ratio float64)) (*Payload, error) {
	return f(ctx, req, progress)
}

// CacheKey returns the persistent cache key for a URL and version tag.
func CacheKey(url, version string) string {
	if version == "" {
		return url
	}
	return url + "@" + version
}
