// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/corext/corext/pkg/resource"
)

type (
	// FakeTransport is an in-memory resource.Transport. Responses are keyed by
	// URL without query string, so cache-busting parameters do not matter.
	// Fetches for a gated URL block until the gate is opened or ctx is done.
	FakeTransport struct {
		mu        sync.Mutex
		responses map[string]FakeResponse
		gates     map[string]chan struct{}
		calls     map[string]int
		urls      []string
	}

	// FakeResponse describes what FakeTransport returns for a URL.
	FakeResponse struct {
		Body       string
		Type       string
		StatusCode int
		Err        error
	}
)

// NewFakeTransport creates an empty FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		responses: make(map[string]FakeResponse),
		gates:     make(map[string]chan struct{}),
		calls:     make(map[string]int),
	}
}

// Serve registers body as the response for rawURL.
func (f *FakeTransport) Serve(rawURL, body string) *FakeTransport {
	return f.Respond(rawURL, FakeResponse{Body: body})
}

// Respond registers a full response for rawURL.
func (f *FakeTransport) Respond(rawURL string, resp FakeResponse) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[withoutQuery(rawURL)] = resp
	return f
}

// Gate blocks fetches of rawURL until the returned func is called.
func (f *FakeTransport) Gate(rawURL string) (open func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[withoutQuery(rawURL)] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Calls returns how often rawURL was fetched.
func (f *FakeTransport) Calls(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[withoutQuery(rawURL)]
}

// Requested returns every fetched URL, including query strings, sorted.
func (f *FakeTransport) Requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.urls...)
	sort.Strings(out)
	return out
}

// Fetch implements resource.Transport.
func (f *FakeTransport) Fetch(ctx context.Context, req resource.FetchRequest, progress func(float64)) (*resource.Payload, error) {
	key := withoutQuery(req.URL)

	f.mu.Lock()
	f.calls[key]++
	f.urls = append(f.urls, req.URL)
	resp, ok := f.responses[key]
	gate := f.gates[key]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, &resource.HTTPStatusError{URL: req.URL, StatusCode: 404}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	if progress != nil {
		progress(0.5)
		progress(1)
	}
	code := resp.StatusCode
	if code == 0 {
		code = 200
	}
	if code >= 300 && code != 304 {
		return nil, &resource.HTTPStatusError{URL: req.URL, StatusCode: code}
	}
	return &resource.Payload{Data: []byte(resp.Body), Type: resp.Type, StatusCode: code}, nil
}

func withoutQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		panic(fmt.Sprintf("testutil: invalid URL %q: %v", raw, err))
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
