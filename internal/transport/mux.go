// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/corext/corext/pkg/resource"
)

// ErrUnsupportedScheme is returned for URLs no registered transport handles.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// Mux routes fetches to a transport by URL scheme.
type Mux struct {
	routes map[string]resource.Transport
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{routes: make(map[string]resource.Transport)}
}

// Default returns a Mux serving http, https and file URLs.
func Default(opts ...HTTPOption) *Mux {
	h := NewHTTP(opts...)
	return NewMux().
		Handle("http", h).
		Handle("https", h).
		Handle("file", NewFile())
}

// Handle registers t for scheme, replacing any previous route.
func (m *Mux) Handle(scheme string, t resource.Transport) *Mux {
	m.routes[strings.ToLower(scheme)] = t
	return m
}

// Schemes reports the registered schemes, sorted.
func (m *Mux) Schemes() []string {
	out := make([]string, 0, len(m.routes))
	for s := range m.routes {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Fetch implements resource.Transport.
func (m *Mux) Fetch(ctx context.Context, fr resource.FetchRequest, progress func(float64)) (*resource.Payload, error) {
	u, err := url.Parse(fr.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", fr.URL, err)
	}
	t, ok := m.routes[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w %q for %s", ErrUnsupportedScheme, u.Scheme, fr.URL)
	}
	return t.Fetch(ctx, fr, progress)
}
