// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

type outcome struct {
	payload *Payload
	source  Source
	err     error
}

// Start issues the transfer. It is a no-op unless the request is Pending.
// Parents are started first; all transfers still run in parallel, only ready
// notification is ordered.
func (r *Request) Start() *Request {
	if r.status != StatusPending {
		return r
	}
	r.setStatus(StatusLoading, "starting transfer")
	for _, p := range r.parents {
		p.Start()
	}
	r.fetch()
	return r
}

// Abort cancels an in-flight transfer. The request then fails with ErrAborted.
// Dependants and already fired handlers are not affected.
func (r *Request) Abort() *Request {
	if r.status != StatusLoading || r.cancel == nil {
		return r
	}
	r.addMessage("abort requested")
	r.cancel()
	return r
}

// Reload resets the request to Pending and starts it again. With cascade set the
// parents are reset as well and re-fetched before the request itself.
func (r *Request) Reload(cascade bool) *Request {
	r.resetTree(cascade, make(map[*Request]bool))
	return r.Start()
}

func (r *Request) resetTree(cascade bool, seen map[*Request]bool) {
	if seen[r] {
		return
	}
	seen[r] = true
	if cascade {
		for _, p := range r.parents {
			p.resetTree(true, seen)
		}
	}
	r.reset()
}

func (r *Request) reset() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.generation++

	if r.notified {
		for _, d := range r.dependants {
			if d.parentCompleted > 0 {
				d.parentCompleted--
			}
		}
	}
	r.notified = false

	r.parentCompleted = 0
	for _, p := range r.parents {
		if p.notified {
			r.parentCompleted++
		}
	}

	if r.cursor > 0 {
		r.chain = r.chain[r.cursor:]
		r.cursor = 0
	}
	r.data = nil
	r.transformed = nil
	r.responseCode = 0
	r.err = nil
	r.reported = false
	r.loadErr = nil
	r.paused = false
	r.suspended = false
	r.progressDone = false
	r.refresh = true
	r.setStatus(StatusPending, "reset for reload")
}

func (r *Request) fetch() {
	g := r.reg
	gen := r.generation

	ctx, cancel := context.WithCancel(context.Background())
	if g.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, g.timeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}
	r.cancel = cancel

	req := FetchRequest{URL: r.fetchURL(), Type: r.typ, Async: r.async}
	key := CacheKey(r.url, g.version)
	target := r.url
	// A reload must observe the new body, so it skips the cache read.
	refresh := r.refresh
	r.refresh = false

	if !r.async {
		out := g.transfer(ctx, key, target, req, refresh, func(ratio float64) { r.emitProgress(ratio * 100) })
		r.complete(gen, out)
		return
	}

	release := g.loop.Hold()
	go func() {
		defer release()
		progress := func(ratio float64) {
			g.loop.Post(func() {
				if r.generation == gen && r.status == StatusLoading {
					r.emitProgress(ratio * 100)
				}
			})
		}
		out := g.transfer(ctx, key, target, req, refresh, progress)
		g.loop.Post(func() { r.complete(gen, out) })
	}()
}

// transfer runs off the loop goroutine for async requests. It only touches the
// registry's immutable configuration and goroutine-safe collaborators.
func (g *Registry) transfer(ctx context.Context, key, target string, req FetchRequest, refresh bool, progress func(float64)) outcome {
	start := time.Now()

	if g.cache != nil && !refresh {
		data, ok, err := g.cache.Get(ctx, key)
		switch {
		case err != nil:
			g.logger.Warn("cache read failed", "key", key, "err", err)
		case ok:
			progress(1)
			out := outcome{payload: &Payload{Data: data, StatusCode: 200}, source: SourceCache}
			g.observe(target, out, time.Since(start))
			return out
		}
	}

	if g.transport == nil {
		out := outcome{err: fmt.Errorf("%w: no transport configured", ErrTransport), source: SourceNetwork}
		g.observe(target, out, time.Since(start))
		return out
	}

	payload, err := g.transport.Fetch(ctx, req, progress)
	if err != nil {
		err = classify(ctx, err)
	} else if payload == nil {
		err = fmt.Errorf("%w: transport returned no payload", ErrTransport)
	}
	out := outcome{payload: payload, source: SourceNetwork, err: err}

	if err == nil && g.cache != nil {
		if setErr := g.cache.Set(ctx, key, payload.Data); setErr != nil {
			g.logger.Warn("cache write failed", "key", key, "err", setErr)
		}
	}
	g.observe(target, out, time.Since(start))
	return out
}

func (g *Registry) observe(target string, out outcome, elapsed time.Duration) {
	if g.observer == nil {
		return
	}
	size := 0
	if out.payload != nil {
		size = len(out.payload.Data)
	}
	g.observer.FetchCompleted(target, out.source, size, elapsed, out.err)
}

// classify maps context failures to the loader's sentinels.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrAborted), errors.Is(err, ErrTimeout):
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrAborted, err)
	case errors.Is(err, ErrTransport):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}

// complete applies a transfer outcome on the loop goroutine.
func (r *Request) complete(gen int, out outcome) {
	if gen != r.generation || r.status != StatusLoading {
		return
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	if out.err != nil {
		r.setError(out.err)
		r.doError()
		return
	}

	p := out.payload
	r.responseCode = p.StatusCode
	if !TypesMatch(r.typ, p.Type) {
		r.setError(&TypeMismatchError{URL: r.url, Declared: r.typ, Received: CanonicalType(p.Type)})
		r.doError()
		return
	}

	r.data = p.Data
	if isTextual(r.typ) {
		r.transformed = string(p.Data)
	} else {
		r.transformed = p.Data
	}
	r.setStatus(StatusLoaded, fmt.Sprintf("loaded %d bytes from %s", len(p.Data), out.source))
	r.doNext()
}

func (r *Request) fetchURL() string {
	if !r.cacheBusting {
		return r.url
	}
	u, err := url.Parse(r.url)
	if err != nil {
		return r.url
	}
	q := u.Query()
	q.Set(r.reg.bustVar, r.reg.bustValue)
	u.RawQuery = q.Encode()
	return u.String()
}
