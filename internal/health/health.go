// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package health answers liveness and readiness probes for msgbusd.
//
// Both probes report a summary of the bus registry. Liveness never runs
// checks and always answers 200; readiness runs every registered Check
// concurrently under a deadline and answers 503 when one is unhealthy.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/msgbus/internal/log"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

var severity = map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}

func worse(a, b Status) Status {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

// Result is the outcome of one Check.
type Result struct {
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Check inspects one dependency of the daemon. It should return promptly
// once ctx is done.
type Check func(ctx context.Context) Result

// BusSummary describes the bus registry at probe time.
type BusSummary struct {
	Name     string `json:"name,omitempty"`
	Dispatch string `json:"dispatch,omitempty"`
	Handlers int    `json:"handlers"`
	Dead     int    `json:"dead"`
}

// Report is the body of both probes.
type Report struct {
	Status    Status            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    int64             `json:"uptime_seconds"`
	Bus       *BusSummary       `json:"bus,omitempty"`
	Checks    map[string]Result `json:"checks,omitempty"`
}

// Options configure a Manager.
type Options struct {
	Version  string
	BusName  string
	Dispatch string
	// Bus is summarized in every report when set.
	Bus SubscriberLister
	// Timeout bounds one readiness run. Defaults to 2s.
	Timeout time.Duration
}

type namedCheck struct {
	name  string
	check Check
}

// Manager runs the registered checks and serves the probes.
type Manager struct {
	opts    Options
	started time.Time

	mu     sync.RWMutex
	checks []namedCheck
}

func NewManager(opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	return &Manager{opts: opts, started: time.Now()}
}

// Add registers check under name, replacing an earlier check of that name.
func (m *Manager) Add(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := slices.IndexFunc(m.checks, func(c namedCheck) bool { return c.name == name }); i >= 0 {
		m.checks[i].check = check
		return
	}
	m.checks = append(m.checks, namedCheck{name: name, check: check})
}

func (m *Manager) base() Report {
	rep := Report{
		Status:    StatusHealthy,
		Version:   m.opts.Version,
		Timestamp: time.Now(),
		Uptime:    int64(time.Since(m.started).Seconds()),
	}
	if m.opts.Bus != nil {
		total, dead := countHandlers(m.opts.Bus)
		rep.Bus = &BusSummary{
			Name:     m.opts.BusName,
			Dispatch: m.opts.Dispatch,
			Handlers: total,
			Dead:     dead,
		}
	}
	return rep
}

// Live reports that the process serves requests. Handlers awaiting purge
// degrade the status.
func (m *Manager) Live() Report {
	rep := m.base()
	if rep.Bus != nil && rep.Bus.Dead > 0 {
		rep.Status = StatusDegraded
	}
	return rep
}

// Ready runs every check and reports whether none of them is unhealthy.
func (m *Manager) Ready(ctx context.Context) (Report, bool) {
	m.mu.RLock()
	checks := slices.Clone(m.checks)
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	results := make([]Result, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			results[i] = run(ctx, c.check)
			return nil
		})
	}
	_ = g.Wait()

	rep := m.base()
	if len(checks) > 0 {
		rep.Checks = make(map[string]Result, len(checks))
	}
	for i, c := range checks {
		rep.Checks[c.name] = results[i]
		rep.Status = worse(rep.Status, results[i].Status)
	}
	return rep, rep.Status != StatusUnhealthy
}

func run(ctx context.Context, check Check) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Status: StatusUnhealthy, Error: fmt.Sprintf("check panicked: %v", r)}
		}
	}()
	return check(ctx)
}

// ServeLive handles GET /healthz.
func (m *Manager) ServeLive(w http.ResponseWriter, r *http.Request) {
	rep := m.Live()
	m.write(w, r, "health.live", http.StatusOK, rep)
}

// ServeReady handles GET /readyz.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	rep, ready := m.Ready(r.Context())
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	m.write(w, r, "health.ready", code, rep)
}

func (m *Manager) write(w http.ResponseWriter, r *http.Request, event string, code int, rep Report) {
	logger := log.WithComponentFromContext(r.Context(), "health")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, event).Msg("failed to encode probe response")
		return
	}

	logger.Debug().
		Str(log.FieldEvent, event).
		Str("status", string(rep.Status)).
		Int("code", code).
		Msg("probe answered")
}
