// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"
)

// Entry is one message seen by the Journal.
type Entry struct {
	At      time.Time `json:"at"`
	Type    string    `json:"type"`
	Message string    `json:"message"`
}

// Journal keeps the most recent messages published on a bus. It subscribes
// to every message type through a binding on any.
type Journal struct {
	mu      sync.Mutex
	size    int
	entries []Entry
	now     func() time.Time
}

// NewJournal returns a Journal that keeps at most size entries.
func NewJournal(size int) *Journal {
	return &Journal{size: size, now: time.Now}
}

// Record appends msg, evicting the oldest entry when full.
func (j *Journal) Record(_ context.Context, msg any) error {
	if j.size <= 0 {
		return nil
	}
	e := Entry{
		At:      j.now().UTC(),
		Type:    reflect.TypeOf(msg).String(),
		Message: fmt.Sprintf("%+v", msg),
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) == j.size {
		j.entries = slices.Delete(j.entries, 0, 1)
	}
	j.entries = append(j.entries, e)
	return nil
}

// Recent returns the recorded entries, oldest first.
func (j *Journal) Recent() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.entries)
}
