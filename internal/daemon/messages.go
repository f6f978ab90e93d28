// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "time"

// Ping is published by POST /debug/publish.
type Ping struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}
