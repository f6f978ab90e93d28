// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/msgbus/internal/eventbus"
	"github.com/ManuGH/msgbus/internal/health"
	xglog "github.com/ManuGH/msgbus/internal/log"
)

// BusStatus is the body of GET /debug/bus.
type BusStatus struct {
	Name        string                    `json:"name"`
	Subscribers []eventbus.SubscriberInfo `json:"subscribers"`
	Recent      []Entry                   `json:"recent"`
}

// RouterConfig holds what the debug HTTP handler serves.
type RouterConfig struct {
	BusName  string
	Bus      *eventbus.Bus
	Journal  *Journal
	Dispatch eventbus.Marshal

	// Health serves /healthz and /readyz. Without one, only the bus is
	// checked.
	Health *health.Manager

	// PublishLimit is the number of POST /debug/publish requests allowed
	// per client IP and minute. Zero disables the limit.
	PublishLimit int
}

type debugServer struct {
	name     string
	bus      *eventbus.Bus
	journal  *Journal
	dispatch eventbus.Marshal
	logger   zerolog.Logger
}

// NewRouter returns the debug HTTP handler for cfg.Bus.
func NewRouter(cfg RouterConfig) http.Handler {
	s := &debugServer{
		name:     cfg.BusName,
		bus:      cfg.Bus,
		journal:  cfg.Journal,
		dispatch: cfg.Dispatch,
		logger:   xglog.WithComponent("debug-http"),
	}

	hm := cfg.Health
	if hm == nil {
		hm = health.NewManager(health.Options{BusName: cfg.BusName, Bus: cfg.Bus})
		hm.Add("bus", health.BusCheck(cfg.Bus))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", hm.ServeLive)
	r.Get("/readyz", hm.ServeReady)
	r.Get("/debug/bus", s.handleStatus)
	r.With(publishRateLimit(cfg.PublishLimit)).Post("/debug/publish", s.handlePublish)
	r.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(r, "msgbusd")
}

func publishRateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	const window = time.Minute
	return httprate.Limit(
		perMinute,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limit_exceeded"})
		}),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *debugServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := BusStatus{
		Name:        s.name,
		Subscribers: s.bus.Subscribers(),
		Recent:      []Entry{},
	}
	if s.journal != nil {
		status.Recent = s.journal.Recent()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *debugServer) handlePublish(w http.ResponseWriter, r *http.Request) {
	var ping Ping
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&ping); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	ping.At = time.Now().UTC()

	ctx := xglog.ContextWithRequestID(r.Context(), middleware.GetReqID(r.Context()))
	if err := s.bus.Publish(ctx, ping, s.dispatch); err != nil {
		logger := xglog.WithContext(ctx, s.logger)
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "debug.publish_failed").
			Msg("publish from debug endpoint failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, ping)
}
