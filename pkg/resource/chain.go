// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"fmt"
)

// schedule queues chain processing for a later turn when the chain is not draining
// right now: after it drained once, or while the request sits in the error state.
func (r *Request) schedule() {
	if r.scheduled {
		return
	}
	if r.status < StatusWaiting && r.status != StatusError {
		return
	}
	r.scheduled = true
	r.reg.loop.Post(func() {
		r.scheduled = false
		r.process()
	})
}

// process resumes whichever drain matches the current state.
func (r *Request) process() {
	switch {
	case r.status == StatusError:
		r.doError()
	case r.status >= StatusLoaded:
		r.doNext()
	}
}

// doNext drains success entries from the persistent cursor. Entries appended while a
// handler runs land behind the cursor and are visited by the same loop.
func (r *Request) doNext() {
	if r.paused || r.suspended {
		return
	}
	if r.status == StatusError {
		r.doError()
		return
	}
	if r.status < StatusLoaded {
		return
	}
	if !r.progressDone {
		r.progressDone = true
		r.emitProgress(100)
	}

	for r.cursor < len(r.chain) {
		if r.paused {
			return
		}
		e := r.chain[r.cursor]
		r.cursor++

		switch {
		case e.onLoaded != nil:
			result, err := r.callLoaded(e.onLoaded)
			if err != nil {
				r.setError(fmt.Errorf("%w: %w", ErrHandlerFailed, err))
				r.doError()
				return
			}
			if inner, ok := r.composed(result); ok {
				switch {
				case inner.status == StatusError:
					r.setError(fmt.Errorf("composed request %s failed: %w", inner.url, inner.err))
					r.doError()
					return
				case !inner.status.IsSettled():
					r.suspend(inner, false)
					return
				}
				result = inner.transformed
			} else if _, self := result.(Loadable); self {
				result = nil
			}
			if result != nil {
				r.transformed = result
			}
		case e.onFinally != nil:
			if err := r.callFinally(e.onFinally); err != nil {
				r.addMessage("finally handler failed: " + err.Error())
				r.logger.Error("finally handler failed", "err", err)
			}
		}
	}

	r.chain = nil
	r.cursor = 0
	if r.status < StatusWaiting {
		r.setStatus(StatusWaiting, "handler chain drained")
	}
	r.doReady()
}

// doError walks error entries from the cursor. A handler that returns a nil error
// recovers the request and resumes doNext at the following entry.
func (r *Request) doError() {
	if r.paused || r.suspended {
		return
	}

	for r.cursor < len(r.chain) {
		if r.paused {
			return
		}
		e := r.chain[r.cursor]
		r.cursor++
		if e.onError == nil {
			continue
		}

		result, err := r.callError(e.onError, r.err)
		if err != nil {
			r.err = err
			r.addMessage("error handler: " + err.Error())
			continue
		}
		if inner, ok := r.composed(result); ok {
			if inner.status == StatusError {
				r.err = fmt.Errorf("composed request %s failed: %w", inner.url, inner.err)
				r.addMessage("error handler: " + r.err.Error())
				continue
			}
			if !inner.status.IsSettled() {
				r.suspend(inner, true)
				return
			}
			result = inner.transformed
		} else if _, self := result.(Loadable); self {
			result = nil
		}
		if result != nil {
			r.transformed = result
		}
		r.clearError()
		r.doNext()
		return
	}

	r.chain = nil
	r.cursor = 0
	r.fail()
}

// doReady fires ready handlers and notifies dependants once the chain drained and
// every parent has been counted. The dependant counter is incremented before the
// recursive call so a dependant never sees itself complete early or twice.
func (r *Request) doReady() {
	if r.paused || r.suspended {
		return
	}
	if r.status == StatusError || r.status < StatusWaiting {
		return
	}
	if r.parentCompleted < len(r.parents) {
		return
	}
	if r.status < StatusReady {
		r.setStatus(StatusReady, "all dependencies ready")
	}

	for len(r.onReady) > 0 {
		if r.paused {
			return
		}
		h := r.onReady[0]
		r.onReady[0] = nil
		r.onReady = r.onReady[1:]
		if err := r.callReady(h); err != nil {
			r.setError(fmt.Errorf("%w: ready handler: %w", ErrHandlerFailed, err))
			r.doError()
			return
		}
	}

	if !r.notified {
		r.notified = true
		for _, d := range r.dependants {
			d.parentCompleted++
			d.doReady()
		}
	}
	r.flushWaiters()
}

// unready moves a Ready request back to Waiting and takes back the parent count
// it gave its dependants, which become Waiting again in turn.
func (r *Request) unready(reason string) {
	if r.status != StatusReady {
		return
	}
	r.setStatus(StatusWaiting, reason)
	if !r.notified {
		return
	}
	r.notified = false
	for _, d := range r.dependants {
		if d.parentCompleted > 0 {
			d.parentCompleted--
		}
		d.unready("dependency " + r.url + " is waiting again")
	}
}

// suspend parks the chain until inner settles, then resumes the matching drain.
func (r *Request) suspend(inner *Request, recovering bool) {
	r.suspended = true
	r.addMessage("waiting on " + inner.url)
	inner.Start()
	inner.await(func(done *Request) {
		r.suspended = false
		if done.status == StatusError {
			r.setError(fmt.Errorf("composed request %s failed: %w", done.url, done.err))
			r.doError()
			return
		}
		if done.transformed != nil {
			r.transformed = done.transformed
		}
		if recovering {
			r.clearError()
		}
		r.doNext()
	})
}

// await calls fn on a later turn once r is settled (ready) or terminally failed.
// A request with waiters does not report its terminal error: the waiter owns it.
func (r *Request) await(fn func(*Request)) {
	if r.status.IsSettled() && r.notified || r.status == StatusError && r.reported {
		r.reg.loop.Post(func() { fn(r) })
		return
	}
	r.waiters = append(r.waiters, fn)
}

// composed returns the Request behind a handler result when it is another Loadable.
func (r *Request) composed(result any) (*Request, bool) {
	l, ok := result.(Loadable)
	if !ok || l == nil {
		return nil, false
	}
	inner := l.Core()
	if inner == nil || inner == r {
		return nil, false
	}
	return inner, true
}

func (r *Request) flushWaiters() {
	waiters := r.waiters
	r.waiters = nil
	for _, fn := range waiters {
		fn(r)
	}
}

// clearError also takes back a LoadError the run has not returned yet, so a
// request recovered by a late Catch does not fail the run.
func (r *Request) clearError() {
	if r.loadErr != nil {
		r.reg.loop.Retract(r.loadErr)
		r.loadErr = nil
	}
	r.err = nil
	r.reported = false
	r.setStatus(StatusLoaded, "recovered from error")
}

// fail handles an exhausted error chain.
func (r *Request) fail() {
	if r.reported {
		return
	}
	r.reported = true
	if len(r.waiters) > 0 {
		r.flushWaiters()
		return
	}
	loadErr := &LoadError{URL: r.url, Log: r.MessageLog(), Err: r.err}
	r.logger.Error("unhandled resource error", "err", r.err)
	r.loadErr = loadErr
	r.reg.loop.Report(loadErr)
}

func (r *Request) emitProgress(percent float64) {
	percent = min(max(percent, 0), 100)
	for _, h := range r.onProgress {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("progress handler panicked", "panic", p)
				}
			}()
			h(r, percent)
		}()
	}
}

func (r *Request) callLoaded(h LoadedHandler) (result any, err error) {
	defer recoverHandler(&err)
	return h(r, r.transformed)
}

func (r *Request) callError(h ErrorHandler, cause error) (result any, err error) {
	defer recoverHandler(&err)
	return h(r, cause)
}

func (r *Request) callFinally(h FinallyHandler) (err error) {
	defer recoverHandler(&err)
	return h()
}

func (r *Request) callReady(h ReadyHandler) (err error) {
	defer recoverHandler(&err)
	return h(r)
}

func recoverHandler(err *error) {
	if p := recover(); p != nil {
		if e, ok := p.(error); ok {
			*err = fmt.Errorf("panic: %w", e)
			return
		}
		*err = fmt.Errorf("panic: %v", p)
	}
}
