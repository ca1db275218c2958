// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
)

type (
	// Loadable is anything backed by a Request: plain resources, modules, manifests.
	Loadable interface {
		Core() *Request
	}

	// LoadedHandler receives the current transformed data. A nil result keeps the data,
	// a Loadable result composes (the chain waits for it and takes its data), and any
	// other value replaces the data. A non-nil error routes into the error chain.
	LoadedHandler func(r *Request, data any) (any, error)

	// ErrorHandler receives the current error. Returning a nil error recovers: the
	// status goes back to Loaded and the result (when not nil) becomes the data.
	// Returning an error keeps the request failed and passes that error on.
	ErrorHandler func(r *Request, err error) (any, error)

	// FinallyHandler runs in chain order on the success path. Its error is logged only.
	FinallyHandler func() error

	// ReadyHandler runs once the request and all of its parents are ready.
	ReadyHandler func(r *Request) error

	// ProgressHandler receives the transfer percentage (0..100).
	ProgressHandler func(r *Request, percent float64)

	entry struct {
		onLoaded  LoadedHandler
		onError   ErrorHandler
		onFinally FinallyHandler
	}

	// Request is a single fetchable resource with an ordered handler chain and
	// parent/dependant links. A Request must only be used from its event loop.
	Request struct {
		reg    *Registry
		logger *log.Logger

		url          string
		typ          string
		async        bool
		cacheBusting bool

		status       Status
		data         []byte
		transformed  any
		responseCode int
		messageLog   []string
		err          error

		parents         []*Request
		dependants      []*Request
		parentCompleted int
		notified        bool

		chain        []entry
		cursor       int
		onReady      []ReadyHandler
		onProgress   []ProgressHandler
		progressDone bool

		paused    bool
		suspended bool
		scheduled bool
		reported  bool
		loadErr   *LoadError
		waiters   []func(*Request)

		cancel     context.CancelFunc
		generation int
		// refresh skips the cache read on the next fetch.
		refresh bool
	}
)

func newRequest(reg *Registry, url, typ string, async, cacheBusting bool) *Request {
	return &Request{
		reg:          reg,
		logger:       reg.logger.With("url", url),
		url:          url,
		typ:          typ,
		async:        async,
		cacheBusting: cacheBusting,
	}
}

// Include composes parent and child with their concrete types: it makes child depend on
// parent and returns child so configuration continues on the dependant.
func Include[T Loadable](parent Loadable, child T) T {
	parent.Core().Include(child.Core())
	return child
}

// Core implements Loadable.
func (r *Request) Core() *Request { return r }

// URL returns the normalized URL.
func (r *Request) URL() string { return r.url }

// Type returns the declared resource type.
func (r *Request) Type() string { return r.typ }

// Async reports whether transfers run in the background.
func (r *Request) Async() bool { return r.async }

// CacheBusting reports whether a cache-busting parameter is appended to transfers.
func (r *Request) CacheBusting() bool { return r.cacheBusting }

// Status returns the current lifecycle state.
func (r *Request) Status() Status { return r.status }

// Data returns the raw payload.
func (r *Request) Data() []byte { return r.data }

// TransformedData returns the payload as rewritten by handlers. Before any handler
// runs it is the payload as a string for textual types and []byte otherwise.
func (r *Request) TransformedData() any { return r.transformed }

// ResponseCode returns the transport status code of the last transfer.
func (r *Request) ResponseCode() int { return r.responseCode }

// Err returns the current error while the status is StatusError.
func (r *Request) Err() error { return r.err }

// Message returns the most recent status message.
func (r *Request) Message() string {
	if len(r.messageLog) == 0 {
		return ""
	}
	return r.messageLog[len(r.messageLog)-1]
}

// MessageLog returns every status message in order.
func (r *Request) MessageLog() []string { return slices.Clone(r.messageLog) }

// Parents returns the requests this one depends on.
func (r *Request) Parents() []*Request { return slices.Clone(r.parents) }

// Dependants returns the requests that depend on this one.
func (r *Request) Dependants() []*Request { return slices.Clone(r.dependants) }

// Paused reports whether Pause is in effect.
func (r *Request) Paused() bool { return r.paused }

// Registry returns the registry that owns the request.
func (r *Request) Registry() *Registry { return r.reg }

// Then appends a handler-chain entry. Either handler may be nil, but not both.
// Handlers appended after the chain drained run on a later loop turn.
func (r *Request) Then(onLoaded LoadedHandler, onError ErrorHandler) *Request {
	if onLoaded == nil && onError == nil {
		panic(usage("Then", "at least one of onLoaded and onError is required"))
	}
	r.chain = append(r.chain, entry{onLoaded: onLoaded, onError: onError})
	r.schedule()
	return r
}

// Catch appends an error-only chain entry.
func (r *Request) Catch(onError ErrorHandler) *Request {
	if onError == nil {
		panic(usage("Catch", "nil handler"))
	}
	r.chain = append(r.chain, entry{onError: onError})
	r.schedule()
	return r
}

// Finally appends an entry that runs in chain order on the success path.
func (r *Request) Finally(onFinally FinallyHandler) *Request {
	if onFinally == nil {
		panic(usage("Finally", "nil handler"))
	}
	r.chain = append(r.chain, entry{onFinally: onFinally})
	r.schedule()
	return r
}

// Ready queues handler to run once the chain drained and every parent is ready.
// Each registration fires exactly once, in registration order.
func (r *Request) Ready(handler ReadyHandler) *Request {
	if handler == nil {
		panic(usage("Ready", "nil handler"))
	}
	r.onReady = append(r.onReady, handler)
	r.schedule()
	return r
}

// While registers a progress handler.
func (r *Request) While(handler ProgressHandler) *Request {
	if handler == nil {
		panic(usage("While", "nil handler"))
	}
	r.onProgress = append(r.onProgress, handler)
	return r
}

// Include makes child depend on r: child becomes ready only after r is ready.
// A child that is already Ready goes back to Waiting until r is ready, and so do
// its Ready dependants. An executed child keeps its status. It returns child, so
// chained calls continue on the dependant.
func (r *Request) Include(child *Request) *Request {
	if child == nil {
		panic(usage("Include", "nil child"))
	}
	if child == r {
		panic(usage("Include", fmt.Sprintf("%s cannot depend on itself", r.url)))
	}
	if slices.Contains(child.parents, r) {
		return child
	}
	child.parents = append(child.parents, r)
	r.dependants = append(r.dependants, child)
	if r.notified {
		// r already announced readiness; count it now rather than never.
		child.parentCompleted++
		child.schedule()
	} else {
		child.unready("waiting on " + r.url)
	}
	return child
}

// Pause freezes chain draining, ready handlers and dependant notification.
func (r *Request) Pause() *Request {
	if !r.paused {
		r.paused = true
		r.addMessage("paused")
	}
	return r
}

// Continue lifts Pause and resumes processing on a later loop turn.
func (r *Request) Continue() *Request {
	if !r.paused {
		return r
	}
	r.paused = false
	r.addMessage("continued")
	r.reg.loop.Post(r.process)
	return r
}

// MarkExecuted moves a Ready request to StatusExecuted. It reports false, and does
// nothing, in any other state.
func (r *Request) MarkExecuted(msg string) bool {
	if r.status != StatusReady {
		return false
	}
	r.setStatus(StatusExecuted, msg)
	return true
}

func (r *Request) addMessage(msg string) {
	r.messageLog = append(r.messageLog, msg)
}

func (r *Request) setStatus(s Status, msg string) {
	from := r.status
	r.status = s
	line := fmt.Sprintf("%s: %s", s, msg)
	r.addMessage(line)
	r.logger.Debug(msg, "status", s)
	if r.reg.observer != nil && from != s {
		r.reg.observer.StatusChanged(r.url, from, s)
	}
}

func (r *Request) setError(err error) {
	r.err = err
	r.reported = false
	r.setStatus(StatusError, err.Error())
}
