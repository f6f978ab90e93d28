// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"weak"
)

// target is the type-erased view of a handler the registry works with.
type target interface {
	isDead() bool
	matches(candidate any) bool
	handles(msgType reflect.Type) bool
	// invoke schedules every entry that accepts msgType and reports how
	// many entries were matched.
	invoke(ctx context.Context, msgType reflect.Type, msg any) (*Completion, int)
	info() SubscriberInfo
}

type entry[S any] struct {
	msgType reflect.Type
	invoke  func(s *S, ctx context.Context, msg any) error
}

// handler wraps one subscriber without keeping it alive.
type handler[S any] struct {
	ref       weak.Pointer[S]
	marshal   Marshal
	subType   reflect.Type
	supported []entry[S] // immutable after construction
}

func newHandler[S any](subscriber *S, marshal Marshal, bindings []Binding[S]) *handler[S] {
	h := &handler[S]{
		ref:     weak.Make(subscriber),
		marshal: marshal,
		subType: reflect.TypeOf(subscriber),
	}
	// One entry per distinct message type; a later binding replaces an
	// earlier one for the same type.
	index := make(map[reflect.Type]int, len(bindings))
	for _, b := range bindings {
		if b.msgType == nil || b.invoke == nil {
			continue
		}
		if i, ok := index[b.msgType]; ok {
			h.supported[i].invoke = b.invoke
			continue
		}
		index[b.msgType] = len(h.supported)
		h.supported = append(h.supported, entry[S]{msgType: b.msgType, invoke: b.invoke})
	}
	return h
}

func (h *handler[S]) isDead() bool {
	return h.ref.Value() == nil
}

func (h *handler[S]) matches(candidate any) bool {
	c, ok := candidate.(*S)
	if !ok || c == nil {
		return false
	}
	return h.ref.Value() == c
}

func (h *handler[S]) handles(msgType reflect.Type) bool {
	for _, e := range h.supported {
		if msgType.AssignableTo(e.msgType) {
			return true
		}
	}
	return false
}

func (h *handler[S]) invoke(ctx context.Context, msgType reflect.Type, msg any) (*Completion, int) {
	s := h.ref.Value()
	if s == nil {
		return Completed(nil), 0
	}

	var matched []entry[S]
	for _, e := range h.supported {
		if msgType.AssignableTo(e.msgType) {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return Completed(nil), 0
	}

	return schedule(h.marshal, func() error {
		var errs []error
		for _, e := range matched {
			if err := call(func() error { return e.invoke(s, ctx, msg) }); err != nil {
				errs = append(errs, fmt.Errorf("%s handling %s: %w", h.subType, e.msgType, err))
			}
		}
		return errors.Join(errs...)
	}), len(matched)
}

func (h *handler[S]) info() SubscriberInfo {
	handles := make([]string, 0, len(h.supported))
	for _, e := range h.supported {
		handles = append(handles, e.msgType.String())
	}
	return SubscriberInfo{
		Type:    h.subType.String(),
		Handles: handles,
		Dead:    h.isDead(),
	}
}
