// Copyright 2025 The Mealdex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"time"

	"github.com/mealdex/mealdex/core"
)

// Scope identifies which pipeline emitted an event.
type Scope string

const (
	ScopeIngest Scope = "ingest"
	ScopeSearch Scope = "search"
)

// Mode separates interactive traffic from bulk backfill traffic. The two
// populations have different latency and quality profiles and are never
// aggregated together.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeBulk     Mode = "bulk"
)

// Outcome is the terminal state of one operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// Quality holds score statistics for one search. Scores are only comparable
// within a mode, never across modes.
type Quality struct {
	Top1    float32 `json:"top1"`
	TopKAvg float32 `json:"top_k_avg"`
	Min     float32 `json:"min"`
	Max     float32 `json:"max"`
}

// Event is one recorded operation. Timings are per stage, keyed by stage
// name (embed, describe, persist, index, query).
type Event struct {
	Scope       Scope                    `json:"scope"`
	Mode        Mode                     `json:"mode"`
	Owner       string                   `json:"owner"`
	Outcome     Outcome                  `json:"outcome"`
	Timings     map[string]time.Duration `json:"timings,omitempty"`
	ResultCount int                      `json:"result_count"`
	Quality     *Quality                 `json:"quality,omitempty"`
	Error       string                   `json:"error,omitempty"`
	Timestamp   time.Time                `json:"timestamp"`
}

// InMode reports whether the event belongs to the given mode. This is the
// single mode predicate: standard excludes anything owned by the bulk user
// or tagged bulk, bulk includes either.
func (e *Event) InMode(mode Mode) bool {
	isBulk := e.Mode == ModeBulk || e.Owner == core.BulkUserID
	if mode == ModeBulk {
		return isBulk
	}
	return !isBulk
}

// EventLog is an append-only store of events.
type EventLog interface {
	// Append durably records one event.
	Append(ctx context.Context, event *Event) error

	// Scan visits events with timestamps in [from, to) in ascending time
	// order. Visiting stops when fn returns false. A zero `to` means now.
	Scan(ctx context.Context, from, to time.Time, fn func(*Event) bool) error

	// Recent visits up to n most recent events in descending time order.
	Recent(ctx context.Context, n int, fn func(*Event) bool) error
}
