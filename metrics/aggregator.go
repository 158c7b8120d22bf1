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
	"log/slog"
	"math"
	"sort"
	"time"
)

const defaultRecentLimit = 10

// Summary aggregates one mode's events over a window. Counts cover every
// matching event; quality statistics cover only search events that carried
// scores.
type Summary struct {
	Mode     Mode
	From     time.Time
	To       time.Time
	Total    int
	Ingests  int
	Searches int

	Successes int
	Partials  int
	Failures  int

	// SuccessRate counts partial outcomes as failures.
	SuccessRate float64

	// MeanStageTimings averages each stage over the events that reported it.
	MeanStageTimings map[string]time.Duration

	MeanResultCount float64

	MeanTop1    float32
	MeanTopKAvg float32
	ScoreMin    float32
	ScoreMax    float32
	ScoredCount int

	// OwnerCounts maps owner id to event count, for the busiest owners.
	OwnerCounts map[string]int

	Recent []*Event
}

// Aggregator records events and computes per-mode summaries over the log.
type Aggregator struct {
	log         EventLog
	recentLimit int
	logger      *slog.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithRecentLimit sets how many recent events a summary carries.
func WithRecentLimit(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.recentLimit = n
		}
	}
}

// WithLogger overrides the aggregator's logger.
func WithLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAggregator creates an aggregator over the event log.
func NewAggregator(log EventLog, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		log:         log,
		recentLimit: defaultRecentLimit,
		logger:      slog.Default().With("component", "metrics"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record appends an event to the log. Recording is fire-and-forget: a
// failed append is logged and swallowed so metrics never fail the
// operation they describe.
func (a *Aggregator) Record(ctx context.Context, event *Event) {
	if err := a.log.Append(context.WithoutCancel(ctx), event); err != nil {
		a.logger.Warn("failed to record metrics event",
			"scope", event.Scope,
			"mode", event.Mode,
			"error", err)
	}
}

// Summarize computes the summary for one mode over [from, to). A zero
// `to` means now. An empty window yields a zeroed summary, never an error.
func (a *Aggregator) Summarize(ctx context.Context, mode Mode, from, to time.Time) (*Summary, error) {
	if to.IsZero() {
		to = time.Now()
	}
	summary := &Summary{
		Mode:             mode,
		From:             from,
		To:               to,
		MeanStageTimings: make(map[string]time.Duration),
		OwnerCounts:      make(map[string]int),
	}

	stageTotals := make(map[string]time.Duration)
	stageCounts := make(map[string]int)
	var resultTotal int
	var top1Total, topKAvgTotal float64

	err := a.log.Scan(ctx, from, to, func(e *Event) bool {
		if !e.InMode(mode) {
			return true
		}
		summary.Total++
		switch e.Scope {
		case ScopeIngest:
			summary.Ingests++
		case ScopeSearch:
			summary.Searches++
		}
		switch e.Outcome {
		case OutcomeSuccess:
			summary.Successes++
		case OutcomePartial:
			summary.Partials++
		case OutcomeFailure:
			summary.Failures++
		}
		for stage, d := range e.Timings {
			stageTotals[stage] += d
			stageCounts[stage]++
		}
		resultTotal += e.ResultCount
		if e.Quality != nil {
			if summary.ScoredCount == 0 {
				summary.ScoreMin = e.Quality.Min
				summary.ScoreMax = e.Quality.Max
			} else {
				if e.Quality.Min < summary.ScoreMin {
					summary.ScoreMin = e.Quality.Min
				}
				if e.Quality.Max > summary.ScoreMax {
					summary.ScoreMax = e.Quality.Max
				}
			}
			top1Total += float64(e.Quality.Top1)
			topKAvgTotal += float64(e.Quality.TopKAvg)
			summary.ScoredCount++
		}
		if e.Owner != "" {
			summary.OwnerCounts[e.Owner]++
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Successes) / float64(summary.Total)
		summary.MeanResultCount = float64(resultTotal) / float64(summary.Total)
	}
	for stage, total := range stageTotals {
		summary.MeanStageTimings[stage] = total / time.Duration(stageCounts[stage])
	}
	if summary.ScoredCount > 0 {
		summary.MeanTop1 = float32(top1Total / float64(summary.ScoredCount))
		summary.MeanTopKAvg = float32(topKAvgTotal / float64(summary.ScoredCount))
	}

	// Walk back until the list is full or the window's lower bound is
	// passed; a cap on visited events would come up short whenever
	// off-mode traffic dominates the tail.
	err = a.log.Recent(ctx, math.MaxInt, func(e *Event) bool {
		if e.Timestamp.Before(from) {
			return false
		}
		if !e.InMode(mode) || !e.Timestamp.Before(to) {
			return true
		}
		summary.Recent = append(summary.Recent, e)
		return len(summary.Recent) < a.recentLimit
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// TopOwners returns the busiest owners in the summary, most active first,
// capped at n.
func (s *Summary) TopOwners(n int) []string {
	owners := make([]string, 0, len(s.OwnerCounts))
	for owner := range s.OwnerCounts {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool {
		if s.OwnerCounts[owners[i]] != s.OwnerCounts[owners[j]] {
			return s.OwnerCounts[owners[i]] > s.OwnerCounts[owners[j]]
		}
		return owners[i] < owners[j]
	})
	if n > 0 && len(owners) > n {
		owners = owners[:n]
	}
	return owners
}
