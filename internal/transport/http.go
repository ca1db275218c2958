// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/corext/corext/pkg/resource"
)

// DefaultUserAgent is sent unless WithUserAgent overrides it.
const DefaultUserAgent = "corext/dev"

type (
	// HTTP fetches http and https URLs. Deadlines and cancellation come from the
	// request context, so the client itself carries no timeout.
	HTTP struct {
		client    *http.Client
		userAgent string
		logger    *log.Logger
	}

	// HTTPOption configures an HTTP transport.
	HTTPOption func(*HTTP)
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTP) { h.userAgent = ua }
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l *log.Logger) HTTPOption {
	return func(h *HTTP) { h.logger = l }
}

// NewHTTP creates an HTTP transport using http.DefaultClient.
func NewHTTP(opts ...HTTPOption) *HTTP {
	h := &HTTP{
		client:    http.DefaultClient,
		userAgent: DefaultUserAgent,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Fetch implements resource.Transport. Responses outside 2xx and 304 return a
// *resource.HTTPStatusError.
func (h *HTTP) Fetch(ctx context.Context, fr resource.FetchRequest, progress func(float64)) (*resource.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fr.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)
	if fr.Type != "" {
		req.Header.Set("Accept", fr.Type+", */*;q=0.1")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if !acceptable(resp.StatusCode) {
		return nil, &resource.HTTPStatusError{URL: fr.URL, StatusCode: resp.StatusCode}
	}

	data, err := readAll(ctx, resp.Body, resp.ContentLength, progress)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", fr.URL, err)
	}
	h.logger.Debug("http fetch", "url", fr.URL, "status", resp.StatusCode, "bytes", len(data))

	return &resource.Payload{
		Data:       data,
		Type:       resp.Header.Get("Content-Type"),
		StatusCode: resp.StatusCode,
	}, nil
}

func acceptable(code int) bool {
	return (code >= 200 && code < 300) || code == http.StatusNotModified
}
