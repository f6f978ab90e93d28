// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventbus

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Marshal runs a unit of work (immediately, deferred, or on another
// goroutine) and returns its Completion. The returned Completion must resolve
// once the work has finished or faulted. Returning nil means the work already
// ran on the calling goroutine; a Marshal that defers work must return a
// Completion tracking it.
type Marshal func(Work) *Completion

// Inline runs work on the calling goroutine.
func Inline(work Work) *Completion {
	return Run(work)
}

// Background runs every unit of work on its own goroutine.
func Background(work Work) *Completion {
	return Go(work)
}

// schedule hands work to m. It never returns a nil Completion, and a panic
// raised by m itself becomes the Completion's fault.
func schedule(m Marshal, work Work) (c *Completion) {
	defer func() {
		if r := recover(); r != nil {
			c = Completed(fmt.Errorf("%w: marshal: %v", ErrHandlerPanic, r))
		}
	}()
	if c = m(work); c == nil {
		c = Completed(nil)
	}
	return c
}

// Pool returns a Marshal that runs work on background goroutines with at
// most size units in flight. Sizes below 1 are treated as 1.
func Pool(size int) Marshal {
	if size < 1 {
		size = 1
	}
	sem := semaphore.NewWeighted(int64(size))
	return func(work Work) *Completion {
		return Go(func() error {
			if err := sem.Acquire(context.Background(), 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return call(work)
		})
	}
}

// RateLimited returns a Marshal that waits for a token from limiter before
// handing work to inner.
func RateLimited(inner Marshal, limiter *rate.Limiter) Marshal {
	return func(work Work) *Completion {
		return schedule(inner, func() error {
			if err := limiter.Wait(context.Background()); err != nil {
				return err
			}
			return work()
		})
	}
}

type dispatchItem struct {
	work Work
	done *Completion
}

// Dispatcher executes work one unit at a time, in submission order, on a
// single goroutine it owns. It models an execution context with thread
// affinity: every handler marshalled through the same Dispatcher observes
// the others' effects without further locking.
//
// Work running on the Dispatcher must not wait for other work submitted to
// the same Dispatcher, and must not call Close.
type Dispatcher struct {
	mu     sync.Mutex
	queue  []dispatchItem
	closed bool

	wake    chan struct{}
	stopped chan struct{}
}

// NewDispatcher starts a Dispatcher. Call Close to stop it.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go d.loop()
	return d
}

// Marshal queues work on the dispatcher goroutine. It satisfies Marshal.
func (d *Dispatcher) Marshal(work Work) *Completion {
	c := newCompletion()
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		c.resolve(ErrDispatcherClosed)
		return c
	}
	d.queue = append(d.queue, dispatchItem{work: work, done: c})
	d.mu.Unlock()
	d.signal()
	return c
}

// Close stops accepting work, runs what is already queued and waits for the
// dispatcher goroutine to exit. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
	<-d.stopped
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			closed := d.closed
			d.mu.Unlock()
			if closed {
				return
			}
			<-d.wake
			continue
		}
		item := d.queue[0]
		d.queue[0] = dispatchItem{}
		d.queue = d.queue[1:]
		d.mu.Unlock()

		item.done.resolve(call(item.work))
	}
}
