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
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/mealdex/mealdex/artifact"
	"github.com/mealdex/mealdex/core"
	"github.com/mealdex/mealdex/metrics"
	"github.com/mealdex/mealdex/vecstore"
)

// Pipeline orchestrates ingestion end to end: coordinate the model calls,
// persist the artifacts, write the vector point, record the event.
type Pipeline struct {
	coordinator *Coordinator
	artifacts   *artifact.Store
	writer      *vecstore.Writer
	aggregator  *metrics.Aggregator
	pool        *ants.Pool
	collection  string
	bulkTarget  string
	dimension   int
	modelID     string
	region      string
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for bulk ingestion.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithMetrics attaches a metrics aggregator. Without one the pipeline
// runs silently.
func WithMetrics(aggregator *metrics.Aggregator) Option {
	return func(p *Pipeline) error {
		p.aggregator = aggregator
		return nil
	}
}

// WithProvenance sets the model id and region stamped into payloads.
func WithProvenance(modelID, region string) Option {
	return func(p *Pipeline) error {
		p.modelID = modelID
		p.region = region
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline. Individual items go into
// collection, bulk runs into bulkCollection.
func NewPipeline(
	coordinator *Coordinator,
	artifacts *artifact.Store,
	writer *vecstore.Writer,
	collection, bulkCollection string,
	dimension int,
	opts ...Option,
) (*Pipeline, error) {
	if coordinator == nil {
		return nil, ErrProviderRequired
	}
	if artifacts == nil {
		return nil, ErrArtifactStoreRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		coordinator: coordinator,
		artifacts:   artifacts,
		writer:      writer,
		pool:        pool,
		collection:  collection,
		bulkTarget:  bulkCollection,
		dimension:   dimension,
		logger:      slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// Result reports one successfully ingested item.
type Result struct {
	Identity    core.ID
	Refs        core.ArtifactRefs
	Description string
	Report      *core.WriteReport
}

// Ingest runs one image through the full individual path, synchronously.
// Exactly one metrics event is recorded, success or failure.
func (p *Pipeline) Ingest(ctx context.Context, image []byte, source core.SourceMeta) (*Result, error) {
	timings := make(map[string]time.Duration)
	started := time.Now()

	stage := time.Now()
	record, err := p.coordinator.Process(ctx, image, source)
	timings["embed"] = time.Since(stage)
	if err != nil {
		p.record(ctx, metrics.ScopeIngest, metrics.ModeStandard, source.UserID, timings, metrics.OutcomeFailure, 0, err)
		return nil, err
	}

	stage = time.Now()
	refs, err := p.artifacts.Persist(ctx, record.Identity, image, record)
	timings["persist"] = time.Since(stage)
	if err != nil {
		p.record(ctx, metrics.ScopeIngest, metrics.ModeStandard, source.UserID, timings, metrics.OutcomeFailure, 0, err)
		return nil, err
	}

	stage = time.Now()
	point := p.buildPoint(record, refs)
	report, err := p.writer.Write(ctx, p.collection, p.dimension, []core.VectorPoint{point})
	timings["index"] = time.Since(stage)
	if err != nil {
		p.record(ctx, metrics.ScopeIngest, metrics.ModeStandard, source.UserID, timings, metrics.OutcomeFailure, 0, err)
		return nil, err
	}
	if !report.AllSucceeded() {
		indexErr := core.NewItemError(core.KindTransient, "index write",
			errorFromReport(report, record.Identity))
		p.record(ctx, metrics.ScopeIngest, metrics.ModeStandard, source.UserID, timings, metrics.OutcomeFailure, 0, indexErr)
		return nil, indexErr
	}

	p.record(ctx, metrics.ScopeIngest, metrics.ModeStandard, source.UserID, timings, metrics.OutcomeSuccess, 1, nil)
	p.logger.Info("item ingested",
		"identity", record.Identity,
		"user_id", source.UserID,
		"elapsed", time.Since(started))

	return &Result{
		Identity:    record.Identity,
		Refs:        refs,
		Description: record.Description,
		Report:      report,
	}, nil
}

// buildPoint assembles the index point for a persisted record.
func (p *Pipeline) buildPoint(record *core.EmbeddingRecord, refs core.ArtifactRefs) core.VectorPoint {
	now := time.Now().UTC()
	mealTime := record.Source.MealTime
	if mealTime.IsZero() {
		mealTime = now
	}
	return core.VectorPoint{
		Identity: record.Identity,
		Vector:   record.Vector,
		Payload: core.Payload{
			UserID:          record.Source.UserID,
			MealType:        record.Source.MealType,
			TS:              mealTime.Unix(),
			ImageKey:        refs.ImageKey,
			RecordKey:       refs.RecordKey,
			Bucket:          refs.Bucket,
			ModelID:         p.modelID,
			Filename:        record.Source.Filename,
			ContentType:     record.Source.ContentType,
			MealTime:        mealTime.Format(time.RFC3339),
			Timestamp:       now.Format(time.RFC3339),
			Description:     record.Description,
			EmbeddingLength: len(record.Vector),
			Region:          p.region,
			ContentHash:     record.ContentHash,
		},
	}
}

func (p *Pipeline) record(ctx context.Context, scope metrics.Scope, mode metrics.Mode, owner string,
	timings map[string]time.Duration, outcome metrics.Outcome, count int, err error) {
	if p.aggregator == nil {
		return
	}
	event := &metrics.Event{
		Scope:       scope,
		Mode:        mode,
		Owner:       owner,
		Outcome:     outcome,
		Timings:     timings,
		ResultCount: count,
		Timestamp:   time.Now().UTC(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	p.aggregator.Record(ctx, event)
}

// Release releases the worker pool. The pipeline should not be used after
// calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
