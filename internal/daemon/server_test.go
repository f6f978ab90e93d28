// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/msgbus/internal/eventbus"
	"github.com/ManuGH/msgbus/internal/health"
)

type failingPinger struct {
	err error
}

func (f *failingPinger) HandlePing(context.Context, Ping) error {
	return f.err
}

func newTestRouter(t *testing.T) (http.Handler, *eventbus.Bus, *Journal) {
	t.Helper()
	b := eventbus.New(eventbus.WithName("server-test"))
	j := NewJournal(10)
	require.NoError(t, eventbus.Subscribe(b, j, eventbus.Inline, eventbus.On((*Journal).Record)))
	t.Cleanup(func() { runtime.KeepAlive(j) })
	return NewRouter(RouterConfig{BusName: "server-test", Bus: b, Journal: j, Dispatch: eventbus.Inline}), b, j
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := serve(h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var live health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &live))
	assert.Equal(t, health.StatusHealthy, live.Status)
	require.NotNil(t, live.Bus)
	assert.Equal(t, "server-test", live.Bus.Name)
	assert.Equal(t, 1, live.Bus.Handlers)

	rec = serve(h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ready health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, health.StatusHealthy, ready.Checks["bus"].Status)
}

func TestReadyzReportsMissingConfigFile(t *testing.T) {
	b := eventbus.New(eventbus.WithName("readyz-test"))
	hm := health.NewManager(health.Options{Version: "test", Bus: b})
	hm.Add("config_file", health.ConfigFileCheck("/nonexistent/msgbusd.yaml"))
	h := NewRouter(RouterConfig{BusName: "readyz-test", Bus: b, Dispatch: eventbus.Inline, Health: hm})

	assert.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", "").Code)
}

func TestPublishEndpoint(t *testing.T) {
	h, _, j := newTestRouter(t)

	rec := serve(h, http.MethodPost, "/debug/publish", `{"text":"hello"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var ping Ping
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ping))
	assert.Equal(t, "hello", ping.Text)
	assert.False(t, ping.At.IsZero())

	recent := j.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "daemon.Ping", recent[0].Type)
}

func TestPublishEndpointEmptyBody(t *testing.T) {
	h, _, j := newTestRouter(t)
	rec := serve(h, http.MethodPost, "/debug/publish", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, j.Recent(), 1)
}

func TestPublishEndpointRejectsBadJSON(t *testing.T) {
	h, _, j := newTestRouter(t)
	rec := serve(h, http.MethodPost, "/debug/publish", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, j.Recent())
}

func TestPublishEndpointReportsHandlerFault(t *testing.T) {
	h, b, j := newTestRouter(t)
	f := &failingPinger{err: errors.New("pinger down")}
	require.NoError(t, eventbus.Subscribe(b, f, eventbus.Inline))

	rec := serve(h, http.MethodPost, "/debug/publish", `{"text":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "pinger down")
	assert.Len(t, j.Recent(), 1, "other handlers still ran")

	runtime.KeepAlive(f)
}

func TestBusStatusEndpoint(t *testing.T) {
	h, _, _ := newTestRouter(t)
	require.Equal(t, http.StatusAccepted, serve(h, http.MethodPost, "/debug/publish", `{"text":"a"}`).Code)

	rec := serve(h, http.MethodGet, "/debug/bus", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status BusStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "server-test", status.Name)
	require.Len(t, status.Subscribers, 1)
	assert.Equal(t, "*daemon.Journal", status.Subscribers[0].Type)
	assert.Equal(t, []string{"interface {}"}, status.Subscribers[0].Handles)
	assert.Len(t, status.Recent, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _, _ := newTestRouter(t)
	require.Equal(t, http.StatusAccepted, serve(h, http.MethodPost, "/debug/publish", "").Code)

	rec := serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `msgbus_publish_total{bus="server-test"}`)
}

func TestUnknownRoute(t *testing.T) {
	h, _, _ := newTestRouter(t)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, "/debug/publish", "").Code)
}

func TestPublishEndpointRateLimit(t *testing.T) {
	b := eventbus.New(eventbus.WithName("ratelimit-test"))
	h := NewRouter(RouterConfig{BusName: "ratelimit-test", Bus: b, Dispatch: eventbus.Inline, PublishLimit: 1})

	assert.Equal(t, http.StatusAccepted, serve(h, http.MethodPost, "/debug/publish", "").Code)
	rec := serve(h, http.MethodPost, "/debug/publish", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", "").Code, "other routes are not limited")
}
