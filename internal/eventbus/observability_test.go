// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventbus

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ManuGH/msgbus/internal/metrics"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	return metric.GetGauge().GetValue()
}

func TestPublishMetrics(t *testing.T) {
	const name = "metrics-test"
	b := New(WithName(name))
	j := &journal{}
	s1 := &subA{id: "s1", j: j, fail: errors.New("nope")}
	s2 := &subAB{id: "s2", j: j}
	require.NoError(t, Subscribe(b, s1, Inline))
	require.NoError(t, Subscribe(b, s2, Inline))
	subscribeTransient(t, b, j)
	assert.Equal(t, 3.0, getGaugeValue(t, metrics.BusSubscribers.WithLabelValues(name)))
	runtime.GC()
	runtime.GC()

	publishes := getCounterValue(t, metrics.BusPublishTotal.WithLabelValues(name))
	deliveries := getCounterValue(t, metrics.BusDeliveriesTotal.WithLabelValues(name))
	faults := getCounterValue(t, metrics.BusHandlerFaultsTotal.WithLabelValues(name))
	purged := getCounterValue(t, metrics.BusDeadPurgedTotal.WithLabelValues(name))

	require.Error(t, b.Publish(context.Background(), MsgA{}, Inline))

	assert.Equal(t, publishes+1, getCounterValue(t, metrics.BusPublishTotal.WithLabelValues(name)))
	assert.Equal(t, deliveries+2, getCounterValue(t, metrics.BusDeliveriesTotal.WithLabelValues(name)))
	assert.Equal(t, faults+1, getCounterValue(t, metrics.BusHandlerFaultsTotal.WithLabelValues(name)))
	assert.Equal(t, purged+1, getCounterValue(t, metrics.BusDeadPurgedTotal.WithLabelValues(name)))
	assert.Equal(t, 2.0, getGaugeValue(t, metrics.BusSubscribers.WithLabelValues(name)))

	runtime.KeepAlive(s1)
	runtime.KeepAlive(s2)
}

func TestPublishSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	b := New(WithName("span-test"), WithTracer(tp.Tracer("test")))
	j := &journal{}
	s := &subA{id: "s", j: j, fail: errors.New("nope")}
	require.NoError(t, Subscribe(b, s, Inline))

	require.Error(t, b.Publish(context.Background(), MsgA{}, Inline))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "eventbus.publish", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "span-test", attrs["bus.name"].AsString())
	assert.Equal(t, "eventbus.MsgA", attrs["bus.message_type"].AsString())
	assert.Equal(t, int64(1), attrs["bus.deliveries"].AsInt64())

	runtime.KeepAlive(s)
}

func TestFaultIsLogged(t *testing.T) {
	var buf bytes.Buffer
	b := New(WithLogger(zerolog.New(&buf)))
	s := &subA{id: "s", j: &journal{}, fail: errors.New("disk on fire")}
	require.NoError(t, Subscribe(b, s, Inline))

	require.Error(t, b.Publish(context.Background(), MsgA{}, Inline))
	assert.Contains(t, buf.String(), `"event":"bus.handler_fault"`)
	assert.Contains(t, buf.String(), "disk on fire")
	assert.Contains(t, buf.String(), `"correlation_id"`)

	runtime.KeepAlive(s)
}

func TestMarshalDeferringWithoutCompletion(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	b := New(WithName("deferred-test"), WithTracer(tp.Tracer("test")))
	j := &journal{}
	s := &subA{id: "s", j: j}
	require.NoError(t, Subscribe(b, s, Inline))

	deferred := func(w Work) *Completion {
		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = w()
		}()
		return nil
	}
	c, err := b.PublishAsync(context.Background(), MsgA{}, deferred)
	require.NoError(t, err)
	require.ErrorIs(t, c.Wait(context.Background()), ErrNotScheduled)

	// The late fan-out still delivers and finishes without touching the
	// already resolved Completion.
	require.Eventually(t, func() bool { return len(sr.Ended()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"s:A"}, j.entries())
	assert.ErrorIs(t, c.Err(), ErrNotScheduled)

	runtime.KeepAlive(s)
}

type panickingTracer struct {
	noop.Tracer
}

func (panickingTracer) Start(context.Context, string, ...trace.SpanStartOption) (context.Context, trace.Span) {
	panic("tracer unavailable")
}

func TestFanOutPanicResolvesPublish(t *testing.T) {
	b := New(WithName("tracer-panic-test"), WithTracer(panickingTracer{}))
	s := &subA{id: "s", j: &journal{}}
	require.NoError(t, Subscribe(b, s, Inline))

	for _, m := range []Marshal{Inline, Background} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := b.Publish(ctx, MsgA{}, m)
		cancel()
		require.ErrorIs(t, err, ErrHandlerPanic)
	}

	runtime.KeepAlive(s)
}
