// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ManuGH/msgbus/internal/eventbus"
)

// SubscriberLister is the part of a bus the checks read.
type SubscriberLister interface {
	Subscribers() []eventbus.SubscriberInfo
}

func countHandlers(bus SubscriberLister) (total, dead int) {
	subs := bus.Subscribers()
	for _, s := range subs {
		if s.Dead {
			dead++
		}
	}
	return len(subs), dead
}

// BusCheck degrades while handlers of collected subscribers wait for the
// next publish to purge them.
func BusCheck(bus SubscriberLister) Check {
	return func(context.Context) Result {
		if bus == nil {
			return Result{Status: StatusUnhealthy, Error: "bus not configured"}
		}
		total, dead := countHandlers(bus)
		if dead > 0 {
			return Result{
				Status: StatusDegraded,
				Detail: fmt.Sprintf("%d of %d handlers await purge", dead, total),
			}
		}
		return Result{Status: StatusHealthy, Detail: fmt.Sprintf("%d registered", total)}
	}
}

// ConfigFileCheck fails when the file msgbusd was started from is gone, so
// the next reload could not succeed. An empty path means defaults only.
func ConfigFileCheck(path string) Check {
	return func(context.Context) Result {
		if path == "" {
			return Result{Status: StatusHealthy, Detail: "defaults, no file"}
		}
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return Result{Status: StatusUnhealthy, Detail: path, Error: "config file missing"}
		case err != nil:
			return Result{Status: StatusUnhealthy, Detail: path, Error: err.Error()}
		case info.IsDir():
			return Result{Status: StatusUnhealthy, Detail: path, Error: "config path is a directory"}
		}
		return Result{Status: StatusHealthy, Detail: path}
	}
}

// ReloadCheck degrades while the last reload reported by last failed; the
// daemon keeps running on the configuration before it.
func ReloadCheck(last func() (time.Time, error)) Check {
	return func(context.Context) Result {
		at, err := last()
		switch {
		case at.IsZero():
			return Result{Status: StatusHealthy, Detail: "initial configuration"}
		case err != nil:
			return Result{
				Status: StatusDegraded,
				Detail: "reload at " + at.UTC().Format(time.RFC3339) + " failed, previous configuration in use",
				Error:  err.Error(),
			}
		}
		return Result{Status: StatusHealthy, Detail: "reloaded at " + at.UTC().Format(time.RFC3339)}
	}
}
