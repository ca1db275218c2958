// SPDX-License-Identifier: MPL-2.0

// Package eventloop provides the single-threaded cooperative scheduler the loader runs on.
//
// Every request, handler chain and registry mutation happens on the goroutine that calls
// [Loop.Run] or [Loop.Drain]. Other goroutines (network transfers, file watchers) only
// ever hand work back through [Loop.Post], which plays the role of a zero-delay timer:
// the task runs on a later turn, after the currently executing task has returned.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
)

type (
	// Loop is a FIFO task queue drained by a single goroutine.
	Loop struct {
		mu     sync.Mutex
		queue  []func()
		holds  int
		errs   []error
		wake   chan struct{}
		logger *log.Logger
	}

	// Option configures a Loop.
	Option func(*Loop)
)

// WithLogger sets the logger used for task panics and reported errors.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New creates an empty Loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post enqueues task to run on a later turn of the loop. Safe for concurrent use.
func (l *Loop) Post(task func()) {
	if task == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()
	l.signal()
}

// Hold marks an outstanding external operation. Run does not consider the loop idle
// while any hold is active. The returned release func is idempotent.
func (l *Loop) Hold() (release func()) {
	l.mu.Lock()
	l.holds++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.holds--
			l.mu.Unlock()
			l.signal()
		})
	}
}

// Report records an error that escaped every handler. Reported errors are returned
// (joined) by the next Run or Drain.
func (l *Loop) Report(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

// Retract removes an error passed to Report that has not yet been returned by
// Run or Drain. Errors are matched by identity. It reports whether err was still
// pending.
func (l *Loop) Retract(err error) bool {
	if err == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.errs {
		if e == err {
			l.errs = slices.Delete(l.errs, i, i+1)
			return true
		}
	}
	return false
}

// Pending returns the number of queued tasks and active holds.
func (l *Loop) Pending() (tasks, holds int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue), l.holds
}

// Drain runs queued tasks, including tasks posted while draining, until the queue is
// empty. It does not wait for holds. Returns the errors reported since the last call.
func (l *Loop) Drain() error {
	for l.runOne() {
	}
	return l.takeErrors()
}

// Run drains the queue and waits for posted work until the queue is empty and no
// holds remain, or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for l.runOne() {
		}

		l.mu.Lock()
		idle := len(l.queue) == 0 && l.holds == 0
		empty := len(l.queue) == 0
		l.mu.Unlock()

		if idle {
			return l.takeErrors()
		}
		if !empty {
			continue
		}

		select {
		case <-ctx.Done():
			return errors.Join(fmt.Errorf("event loop interrupted: %w", ctx.Err()), l.takeErrors())
		case <-l.wake:
		}
	}
}

func (l *Loop) runOne() bool {
	l.mu.Lock()
	if len(l.queue) == 0 {
		l.mu.Unlock()
		return false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	l.mu.Unlock()

	l.invoke(task)
	return true
}

func (l *Loop) invoke(task func()) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("event loop task panicked: %v", r)
			l.logger.Error("task panicked", "panic", r)
			l.Report(err)
		}
	}()
	task()
}

func (l *Loop) takeErrors() error {
	l.mu.Lock()
	errs := l.errs
	l.errs = nil
	l.mu.Unlock()
	return errors.Join(errs...)
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
