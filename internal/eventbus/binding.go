// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventbus

import (
	"context"
	"reflect"
	"strings"
	"sync"
)

// Binding declares that subscribers of type *S handle messages of one type.
// Create Bindings with On, or let Subscribe discover them.
type Binding[S any] struct {
	msgType reflect.Type
	invoke  func(s *S, ctx context.Context, msg any) error
}

// MessageType returns the declared message type.
func (b Binding[S]) MessageType() reflect.Type {
	return b.msgType
}

// On binds fn as the handler of M for subscribers of type *S. fn is usually
// a method expression, e.g. On((*Screen).HandleActivated), so the binding
// holds no reference to any particular subscriber.
//
// When M is an interface type, the binding matches every message whose
// runtime type implements M.
func On[S, M any](fn func(*S, context.Context, M) error) Binding[S] {
	t := reflect.TypeFor[M]()
	if fn == nil {
		return Binding[S]{msgType: t}
	}
	return Binding[S]{
		msgType: t,
		invoke: func(s *S, ctx context.Context, msg any) error {
			return fn(s, ctx, as[M](msg, t))
		},
	}
}

// as converts msg to M. msg's type is known to be assignable to t.
func as[M any](msg any, t reflect.Type) M {
	if m, ok := msg.(M); ok {
		return m
	}
	return reflect.ValueOf(msg).Convert(t).Interface().(M)
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()

	// discovered caches reflected bindings per subscriber type.
	discovered sync.Map // reflect.Type -> any ([]Binding[S])
)

// Discover returns the bindings declared by the method set of *S: every
// exported method whose name starts with "Handle" and whose signature is
// func(context.Context, T) error binds T. Variadic methods are skipped.
func Discover[S any]() []Binding[S] {
	pt := reflect.TypeFor[*S]()
	if v, ok := discovered.Load(pt); ok {
		return v.([]Binding[S])
	}

	var out []Binding[S]
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if !strings.HasPrefix(m.Name, "Handle") {
			continue
		}
		ft := m.Type // receiver is In(0)
		if ft.IsVariadic() || ft.NumIn() != 3 || ft.NumOut() != 1 || ft.In(1) != contextType || ft.Out(0) != errorType {
			continue
		}
		fn := m.Func
		msgType := ft.In(2)
		out = append(out, Binding[S]{
			msgType: msgType,
			invoke: func(s *S, ctx context.Context, msg any) error {
				arg := reflect.ValueOf(msg)
				if arg.Type() != msgType && msgType.Kind() != reflect.Interface {
					arg = arg.Convert(msgType)
				}
				res := fn.Call([]reflect.Value{reflect.ValueOf(s), reflect.ValueOf(ctx), arg})
				err, _ := res[0].Interface().(error)
				return err
			},
		})
	}

	v, _ := discovered.LoadOrStore(pt, out)
	return v.([]Binding[S])
}
