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

package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mealdex/mealdex/core"
	"github.com/mealdex/mealdex/metrics"
)

// BulkItem is one input to a bulk run.
type BulkItem struct {
	Image  []byte
	Source core.SourceMeta
}

// BulkReport summarizes one bulk run. Per-item failures are keyed by input
// position since failed items may never receive an identity.
type BulkReport struct {
	Total     int
	Succeeded []core.ID
	Failed    map[int]string
	Write     *core.WriteReport
	Elapsed   time.Duration
}

// BulkIngest runs items through describe, embed, and persist on the worker
// pool, drains, then performs one chunked write for everything that made it
// through. The owner on every point is the bulk user regardless of what the
// items carry. Per-item failures never abort the run; cancellation stops
// new items from starting but items in flight finish.
func (p *Pipeline) BulkIngest(ctx context.Context, items []BulkItem) (*BulkReport, error) {
	started := time.Now()
	report := &BulkReport{
		Total:  len(items),
		Failed: make(map[int]string),
	}
	if len(items) == 0 {
		report.Elapsed = time.Since(started)
		return report, nil
	}

	type prepared struct {
		index  int
		record *core.EmbeddingRecord
		refs   core.ArtifactRefs
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make([]*prepared, 0, len(items))
	)

	fail := func(index int, err error) {
		mu.Lock()
		report.Failed[index] = err.Error()
		mu.Unlock()
	}

	for i := range items {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(items); j++ {
				report.Failed[j] = err.Error()
			}
			break
		}

		i := i
		item := items[i]
		item.Source.UserID = core.BulkUserID

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()

			itemTimings := make(map[string]time.Duration)
			stage := time.Now()
			record, err := p.coordinator.Process(ctx, item.Image, item.Source)
			itemTimings["embed"] = time.Since(stage)
			if err != nil {
				fail(i, err)
				p.record(ctx, metrics.ScopeIngest, metrics.ModeBulk, core.BulkUserID, itemTimings, metrics.OutcomeFailure, 0, err)
				return
			}

			stage = time.Now()
			refs, err := p.artifacts.Persist(ctx, record.Identity, item.Image, record)
			itemTimings["persist"] = time.Since(stage)
			if err != nil {
				fail(i, err)
				p.record(ctx, metrics.ScopeIngest, metrics.ModeBulk, core.BulkUserID, itemTimings, metrics.OutcomeFailure, 0, err)
				return
			}

			mu.Lock()
			out = append(out, &prepared{index: i, record: record, refs: refs})
			mu.Unlock()
			p.record(ctx, metrics.ScopeIngest, metrics.ModeBulk, core.BulkUserID, itemTimings, metrics.OutcomeSuccess, 1, nil)
		})
		if submitErr != nil {
			wg.Done()
			fail(i, submitErr)
		}
	}

	// Full drain before the write so the batch is complete and stable.
	wg.Wait()

	points := make([]core.VectorPoint, 0, len(out))
	byIdentity := make(map[core.ID]int, len(out))
	for _, pr := range out {
		points = append(points, p.buildPoint(pr.record, pr.refs))
		byIdentity[pr.record.Identity] = pr.index
	}

	writeStarted := time.Now()
	writeReport, err := p.writer.Write(ctx, p.bulkTarget, p.dimension, points)
	if err != nil {
		// Setup failed before any point was written.
		for _, pr := range out {
			report.Failed[pr.index] = err.Error()
		}
		p.recordBulkAggregate(ctx, report, time.Since(writeStarted), metrics.OutcomeFailure, err)
		report.Elapsed = time.Since(started)
		return report, err
	}
	report.Write = writeReport

	for id, reason := range writeReport.Failed {
		if index, ok := byIdentity[id]; ok {
			report.Failed[index] = reason
		}
	}
	report.Succeeded = writeReport.SucceededIDs

	outcome := metrics.OutcomeSuccess
	switch {
	case len(report.Succeeded) == 0:
		outcome = metrics.OutcomeFailure
	case len(report.Failed) > 0:
		outcome = metrics.OutcomePartial
	}
	p.recordBulkAggregate(ctx, report, time.Since(writeStarted), outcome, nil)

	report.Elapsed = time.Since(started)
	p.logger.Info("bulk run complete",
		"total", report.Total,
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
		"chunks", writeReport.Chunks,
		"elapsed", report.Elapsed)
	return report, nil
}

func (p *Pipeline) recordBulkAggregate(ctx context.Context, report *BulkReport, writeElapsed time.Duration, outcome metrics.Outcome, err error) {
	p.record(ctx, metrics.ScopeIngest, metrics.ModeBulk, core.BulkUserID,
		map[string]time.Duration{"index": writeElapsed}, outcome, len(report.Succeeded), err)
}

// errorFromReport surfaces the first per-point failure for single-item
// writes.
func errorFromReport(report *core.WriteReport, id core.ID) error {
	if reason, ok := report.Failed[id]; ok {
		return fmt.Errorf("point %s: %s", id, reason)
	}
	return fmt.Errorf("point %s not written", id)
}
