// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventbus

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/msgbus/internal/log"
	"github.com/ManuGH/msgbus/internal/metrics"
	"github.com/ManuGH/msgbus/internal/telemetry"
)

// SubscriberInfo describes one registered handler for debugging.
type SubscriberInfo struct {
	Type    string   `json:"type"`
	Handles []string `json:"handles"`
	Dead    bool     `json:"dead"`
}

// Bus routes published messages to the subscribers that declared a handler
// for the message's runtime type.
//
// The registry is a passive structure guarded by a mutex. Handler code never
// runs while the mutex is held, so handlers may subscribe, unsubscribe or
// publish re-entrantly.
type Bus struct {
	name   string
	logger zerolog.Logger
	tracer trace.Tracer

	mu       sync.Mutex
	handlers []target // insertion order
}

// Option configures a Bus.
type Option func(*Bus)

// WithName sets the name used in logs and as the metrics label.
func WithName(name string) Option {
	return func(b *Bus) { b.name = name }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithTracer replaces the tracer used for publish spans.
func WithTracer(t trace.Tracer) Option {
	return func(b *Bus) { b.tracer = t }
}

// New returns an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		name:   "default",
		logger: log.WithComponent("eventbus"),
		tracer: telemetry.Tracer("eventbus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str(log.FieldBus, b.name).Logger()
	return b
}

// Subscribe registers subscriber on b. Handler invocations for subscriber
// are scheduled through marshal.
//
// bindings declare the message types subscriber handles. Without bindings
// they are discovered from the method set of *S (see Discover). A
// subscriber with no handlers is accepted and never receives anything.
//
// Subscribing a subscriber that is already registered is a no-op. The bus
// holds subscriber weakly; once nothing else references it, its handler is
// removed after the next publish. S must not be a zero-size type, since
// pointers to distinct zero-size values need not be distinct.
func Subscribe[S any](b *Bus, subscriber *S, marshal Marshal, bindings ...Binding[S]) error {
	if subscriber == nil {
		return invalidArgument("subscriber")
	}
	if reflect.TypeFor[S]().Size() == 0 {
		return fmt.Errorf("%w: subscriber type %T has zero size", ErrInvalidArgument, subscriber)
	}
	if marshal == nil {
		return invalidArgument("marshal")
	}
	if len(bindings) == 0 {
		bindings = Discover[S]()
	}
	h := newHandler(subscriber, marshal, bindings)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, x := range b.handlers {
		if x.matches(subscriber) {
			return nil
		}
	}
	b.handlers = append(b.handlers, h)
	metrics.SetBusSubscribers(b.name, len(b.handlers))

	b.logger.Debug().
		Str(log.FieldEvent, "bus.subscribe").
		Str(log.FieldSubscriber, h.subType.String()).
		Int("handlers", len(h.supported)).
		Msg("subscriber registered")
	return nil
}

// Unsubscribe removes subscriber from b. Removing a subscriber that is not
// registered is a no-op.
func (b *Bus) Unsubscribe(subscriber any) error {
	if isNil(subscriber) {
		return invalidArgument("subscriber")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.IndexFunc(b.handlers, func(h target) bool { return h.matches(subscriber) })
	if i < 0 {
		return nil
	}
	b.handlers = slices.Delete(b.handlers, i, i+1)
	metrics.SetBusSubscribers(b.name, len(b.handlers))
	return nil
}

// HandlerExistsFor reports whether a live handler accepts messages of
// msgType. Handlers whose subscriber was collected no longer count, even
// before a publish purges them.
func (b *Bus) HandlerExistsFor(msgType reflect.Type) bool {
	if msgType == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.ContainsFunc(b.handlers, func(h target) bool { return h.handles(msgType) && !h.isDead() })
}

// HandlerExists reports whether a live handler accepts messages of type M.
func HandlerExists[M any](b *Bus) bool {
	return b.HandlerExistsFor(reflect.TypeFor[M]())
}

// Len returns the number of registered handlers, dead ones included.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

// Subscribers returns a snapshot of the registered handlers in
// registration order.
func (b *Bus) Subscribers() []SubscriberInfo {
	handlers := b.snapshot()
	out := make([]SubscriberInfo, 0, len(handlers))
	for _, h := range handlers {
		out = append(out, h.info())
	}
	return out
}

func (b *Bus) snapshot() []target {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.handlers)
}

// PublishAsync delivers msg to every registered handler that accepts its
// runtime type.
//
// The fan-out is scheduled through marshal: every matching handler is
// invoked through its own subscription marshal. Once all of them finished,
// the purge of handlers whose subscriber was collected is scheduled through
// marshal as well, so both run on the execution context marshal stands for
// without marshal's context being blocked while handlers run. The returned
// Completion resolves after the purge. Its fault joins the faults of all
// handlers; a faulting handler never keeps the others from running. If
// marshal refuses the purge, for example a Dispatcher closed meanwhile, the
// purge runs on the waiting goroutine instead and the publish does not fault.
//
// If marshal never runs the fan-out, or the fan-out itself faults, the
// Completion resolves with marshal's fault or ErrNotScheduled.
//
// ctx is handed to every handler. The bus does not stop handlers when ctx
// is cancelled.
//
// Handlers registered after PublishAsync returns do not receive msg.
func (b *Bus) PublishAsync(ctx context.Context, msg any, marshal Marshal) (*Completion, error) {
	if isNil(msg) {
		return nil, invalidArgument("message")
	}
	if marshal == nil {
		return nil, invalidArgument("marshal")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p := &publication{
		bus:      b,
		id:       uuid.NewString(),
		msg:      msg,
		msgType:  reflect.TypeOf(msg),
		marshal:  marshal,
		toNotify: b.snapshot(),
		done:     newCompletion(),
	}
	metrics.IncBusPublish(b.name)

	var ran atomic.Bool
	started := schedule(marshal, func() error {
		ran.Store(true)
		p.fanOut(ctx)
		return nil
	})
	// settle covers a fan-out that never ran or broke off before handing
	// the wait to finish. p.done keeps the first outcome.
	settle := func() {
		err := started.Err()
		if err == nil && !ran.Load() {
			err = ErrNotScheduled
		}
		if err != nil {
			p.done.resolve(err)
		}
	}
	select {
	case <-started.Done():
		settle()
	default:
		go func() {
			<-started.Done()
			settle()
		}()
	}
	return p.done, nil
}

// Publish is PublishAsync followed by waiting for its Completion. If ctx is
// done first, Publish returns ctx.Err() while the dispatch carries on.
//
// Handlers must not call Publish with a Dispatcher marshal they are running
// on; use PublishAsync there.
func (b *Bus) Publish(ctx context.Context, msg any, marshal Marshal) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := b.PublishAsync(ctx, msg, marshal)
	if err != nil {
		return err
	}
	return c.Wait(ctx)
}

// publication is the state of one PublishAsync call.
type publication struct {
	bus      *Bus
	id       string
	msg      any
	msgType  reflect.Type
	marshal  Marshal
	toNotify []target
	done     *Completion

	start      time.Time
	span       trace.Span
	logger     zerolog.Logger
	deliveries int
}

// fanOut invokes every handler of the snapshot and hands the wait to a
// separate goroutine.
func (p *publication) fanOut(ctx context.Context) {
	b := p.bus
	p.start = time.Now()

	ctx = log.ContextWithCorrelationID(ctx, p.id)
	ctx, p.span = b.tracer.Start(ctx, "eventbus.publish",
		trace.WithAttributes(telemetry.PublishAttributes(b.name, p.id, p.msgType.String(), len(p.toNotify))...))
	p.logger = log.WithContext(ctx, b.logger)

	completions := make([]*Completion, 0, len(p.toNotify))
	for _, h := range p.toNotify {
		c, n := h.invoke(ctx, p.msgType, p.msg)
		completions = append(completions, c)
		p.deliveries += n
	}

	go func() {
		err := awaitAll(completions)
		var swept atomic.Bool
		var purged atomic.Int64
		cleanup := schedule(p.marshal, func() error {
			purged.Add(int64(b.purge(p.toNotify)))
			swept.Store(true)
			return nil
		})
		<-cleanup.Done()
		if !swept.Load() {
			purged.Add(int64(b.purge(p.toNotify)))
		}
		p.finish(err, int(purged.Load()))
	}()
}

func (p *publication) finish(err error, purged int) {
	b := p.bus
	defer p.done.resolve(err)
	defer p.span.End()

	metrics.AddBusDeliveries(b.name, p.deliveries)
	metrics.ObserveBusPublish(b.name, time.Since(p.start))
	p.span.SetAttributes(telemetry.OutcomeAttributes(p.deliveries, purged)...)

	if err != nil {
		metrics.IncBusHandlerFault(b.name)
		p.span.RecordError(err)
		p.span.SetStatus(codes.Error, "handler fault")
		p.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "bus.handler_fault").
			Str(log.FieldMessageType, p.msgType.String()).
			Msg("one or more handlers failed")
		return
	}

	p.logger.Debug().
		Str(log.FieldEvent, "bus.publish").
		Str(log.FieldMessageType, p.msgType.String()).
		Int("deliveries", p.deliveries).
		Dur("duration", time.Since(p.start)).
		Msg("message published")
}

// purge removes the handlers of toNotify whose subscriber is gone and
// returns how many were removed. Removal is by identity so concurrent
// registry changes are tolerated.
func (b *Bus) purge(toNotify []target) int {
	var dead []target
	for _, h := range toNotify {
		if h.isDead() {
			dead = append(dead, h)
		}
	}
	if len(dead) == 0 {
		return 0
	}

	b.mu.Lock()
	before := len(b.handlers)
	b.handlers = slices.DeleteFunc(b.handlers, func(h target) bool { return slices.Contains(dead, h) })
	removed := before - len(b.handlers)
	metrics.SetBusSubscribers(b.name, len(b.handlers))
	b.mu.Unlock()

	metrics.AddBusDeadPurged(b.name, removed)
	b.logger.Info().
		Str(log.FieldEvent, "bus.purge").
		Int("removed", removed).
		Msg("purged handlers of collected subscribers")
	return removed
}
