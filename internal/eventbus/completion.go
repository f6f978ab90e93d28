// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Work is a zero-argument unit of work scheduled through a Marshal.
type Work func() error

// Completion resolves once a unit of work has finished or faulted. Only the
// first outcome counts; later ones are dropped.
// The zero value is not usable; obtain one from Completed, Run, Go or a Marshal.
type Completion struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func (c *Completion) resolve(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Completed returns a Completion that is already resolved with err.
func Completed(err error) *Completion {
	c := newCompletion()
	c.resolve(err)
	return c
}

// Run executes work on the calling goroutine and returns its resolved Completion.
func Run(work Work) *Completion {
	c := newCompletion()
	c.resolve(call(work))
	return c
}

// Go executes work on a new goroutine.
func Go(work Work) *Completion {
	c := newCompletion()
	go func() {
		c.resolve(call(work))
	}()
	return c
}

// Done is closed once the work has finished.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the fault of the finished work. It returns nil while the work
// is still running.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the work finishes or ctx is done. Giving up on ctx does
// not stop the work.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WhenAll resolves after every input has resolved. Faults are joined, so the
// result reports all of them rather than the first one.
func WhenAll(cs ...*Completion) *Completion {
	out := newCompletion()
	go func() {
		out.resolve(awaitAll(cs))
	}()
	return out
}

func awaitAll(cs []*Completion) error {
	var errs []error
	for _, c := range cs {
		if c == nil {
			continue
		}
		<-c.done
		if c.err != nil {
			errs = append(errs, c.err)
		}
	}
	return errors.Join(errs...)
}

// call runs work and converts a panic into an error.
func call(work Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return work()
}
