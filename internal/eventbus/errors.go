// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventbus

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrInvalidArgument is returned when a required argument (subscriber,
	// message or marshal) is absent. Use errors.Is to classify.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrHandlerPanic wraps a panic recovered from a unit of work.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrDispatcherClosed completes work submitted to a closed Dispatcher.
	ErrDispatcherClosed = errors.New("dispatcher closed")

	// ErrNotScheduled is reported by a publish whose marshal resolved
	// without running the fan-out.
	ErrNotScheduled = errors.New("publish was not scheduled")
)

func invalidArgument(name string) error {
	return fmt.Errorf("%w: %s is nil", ErrInvalidArgument, name)
}

// isNil reports whether v is absent: a nil interface or a nil pointer-like value.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
