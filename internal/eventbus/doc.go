// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package eventbus provides an in-process publish/subscribe bus that routes
// messages by their runtime type.
//
// Subscribers are held weakly: subscribing never extends a subscriber's
// lifetime, and wrappers whose subscriber has been garbage collected are
// purged after the next publish. Where handler code runs is decided by the
// caller through a Marshal, once per subscription (delivery policy) and once
// per publish (dispatch policy).
//
//	type Screen struct{ title string }
//
//	func (s *Screen) HandleActivated(ctx context.Context, m Activated) error { ... }
//
//	b := eventbus.New()
//	_ = eventbus.Subscribe(b, screen, eventbus.Inline, eventbus.On((*Screen).HandleActivated))
//	err := b.Publish(ctx, Activated{}, eventbus.Background)
package eventbus
