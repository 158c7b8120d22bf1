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

package vecstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/mealdex/mealdex/core"
	"github.com/mealdex/mealdex/retry"
)

// DefaultChunkSize is how many points go into one upsert call.
const DefaultChunkSize = 512

// Writer pushes points into the index in ordered chunks. Chunks are written
// sequentially so a run that dies leaves a clean prefix behind, not an
// arbitrary subset.
type Writer struct {
	index     Index
	chunkSize int
	policy    retry.Policy
	wait      bool
	logger    *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithChunkSize sets the number of points per upsert call.
func WithChunkSize(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.chunkSize = n
		}
	}
}

// WithRetryPolicy sets the per-chunk retry policy for transient failures.
func WithRetryPolicy(p retry.Policy) WriterOption {
	return func(w *Writer) {
		w.policy = p
	}
}

// WithWait controls whether upserts block until durable. On by default.
func WithWait(wait bool) WriterOption {
	return func(w *Writer) {
		w.wait = wait
	}
}

// WithWriterLogger overrides the writer's logger.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWriter creates a chunked writer over the index.
func NewWriter(index Index, opts ...WriterOption) *Writer {
	w := &Writer{
		index:     index,
		chunkSize: DefaultChunkSize,
		policy:    retry.DefaultPolicy(),
		wait:      true,
		logger:    slog.Default().With("component", "vecstore-writer"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write upserts all points into the collection, chunk by chunk, and returns
// a report covering every point. Transient chunk failures are retried,
// permanent ones recorded per point. Partial failure is never an error:
// callers read the report. The only error return is collection setup
// failing before any point was attempted.
func (w *Writer) Write(ctx context.Context, collection string, dim int, points []core.VectorPoint) (*core.WriteReport, error) {
	started := time.Now()
	report := &core.WriteReport{
		Attempted: len(points),
		Failed:    make(map[core.ID]string),
	}
	if len(points) == 0 {
		report.Elapsed = time.Since(started)
		return report, nil
	}

	// Collection setup gates every chunk, so a transient index blip here
	// gets the same retry treatment as the upserts themselves.
	err := w.policy.Do(ctx, func() error {
		return w.index.EnsureCollection(ctx, collection, dim)
	}, core.IsRetryable)
	if err != nil {
		return nil, err
	}

	for start := 0; start < len(points); start += w.chunkSize {
		// A cancelled run stops before the next chunk; the chunk in
		// flight always runs to completion so the written prefix stays
		// whole.
		if err := ctx.Err(); err != nil {
			for _, p := range points[start:] {
				report.Failed[p.Identity] = err.Error()
			}
			break
		}

		end := min(start+w.chunkSize, len(points))
		chunk := points[start:end]
		report.Chunks++

		err := w.policy.Do(ctx, func() error {
			return w.index.Upsert(context.WithoutCancel(ctx), collection, chunk, w.wait)
		}, core.IsRetryable)
		if err != nil {
			w.logger.Warn("chunk write failed",
				"collection", collection,
				"chunk", report.Chunks,
				"size", len(chunk),
				"error", err)
			for _, p := range chunk {
				report.Failed[p.Identity] = err.Error()
			}
			continue
		}

		for _, p := range chunk {
			report.SucceededIDs = append(report.SucceededIDs, p.Identity)
		}
	}

	report.Elapsed = time.Since(started)
	w.logger.Info("write complete",
		"collection", collection,
		"attempted", report.Attempted,
		"succeeded", len(report.SucceededIDs),
		"failed", len(report.Failed),
		"chunks", report.Chunks,
		"elapsed", report.Elapsed)
	return report, nil
}
