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


// Package artifact persists the raw image and a structured metadata record
// for each ingested item under parallel, identity-keyed object paths.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mealdex/mealdex/core"
)

// ObjectStore is the blob store capability the adapter builds on.
// Implementations must be thread-safe for concurrent use.
type ObjectStore interface {
	// Put writes data under key with the given content type.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// Get reads the object stored under key.
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// Record is the metadata document written next to each image. It contains
// every embedding-record field so either artifact is self-sufficient.
type Record struct {
	Identity        core.ID   `json:"identity"`
	ModelID         string    `json:"model_id"`
	Embedding       []float32 `json:"embedding"`
	EmbeddingLength int       `json:"embedding_length"`
	Description     string    `json:"generated_description"`
	ContentHash     string    `json:"content_hash"`
	Bucket          string    `json:"bucket"`
	ImageKey        string    `json:"image_key"`
	Filename        string    `json:"uploaded_filename"`
	ContentType     string    `json:"content_type"`
	UserID          string    `json:"user_id"`
	MealType        string    `json:"meal_type"`
	MealTime        string    `json:"meal_time"`
	TS              int64     `json:"ts"`
	Region          string    `json:"region"`
	Timestamp       string    `json:"timestamp"`
}

// Store writes and reads item artifacts through an ObjectStore.
type Store struct {
	objects       ObjectStore
	bucket        string
	imagesPrefix  string
	recordsPrefix string
	modelID       string
	region        string
	logger        *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPrefixes overrides the default images/records key prefixes.
func WithPrefixes(images, records string) Option {
	return func(s *Store) {
		s.imagesPrefix = images
		s.recordsPrefix = records
	}
}

// WithProvenance sets the model id and region recorded in metadata.
func WithProvenance(modelID, region string) Option {
	return func(s *Store) {
		s.modelID = modelID
		s.region = region
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// NewStore creates an artifact store writing to the given bucket.
func NewStore(objects ObjectStore, bucket string, opts ...Option) (*Store, error) {
	if objects == nil {
		return nil, fmt.Errorf("artifact store: object store required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("artifact store: bucket required")
	}

	s := &Store{
		objects:       objects,
		bucket:        bucket,
		imagesPrefix:  DefaultImagesPrefix,
		recordsPrefix: DefaultRecordsPrefix,
		logger:        slog.Default().With("component", "artifact-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Persist writes the image and its metadata record. Both writes must
// succeed for the item to count as persisted. If the image write succeeds
// and the record write fails, the error is a PartialPersist carrying the
// stored image ref; the image is deliberately not rolled back, since a
// delete against an external store can itself fail.
func (s *Store) Persist(ctx context.Context, id core.ID, image []byte, rec *core.EmbeddingRecord) (core.ArtifactRefs, error) {
	ext := ExtFromMIME(rec.Source.ContentType, rec.Source.Filename)
	refs := core.ArtifactRefs{
		Bucket:    s.bucket,
		ImageKey:  ImageKey(s.imagesPrefix, id, ext),
		RecordKey: RecordKey(s.recordsPrefix, id),
	}

	if err := s.objects.Put(ctx, s.bucket, refs.ImageKey, image, rec.Source.ContentType); err != nil {
		return core.ArtifactRefs{}, core.ClassifyRemote("persist image", err)
	}

	mealTime := rec.Source.MealTime
	if mealTime.IsZero() {
		mealTime = time.Now().UTC()
	}

	doc := Record{
		Identity:        id,
		ModelID:         s.modelID,
		Embedding:       rec.Vector,
		EmbeddingLength: len(rec.Vector),
		Description:     rec.Description,
		ContentHash:     rec.ContentHash,
		Bucket:          s.bucket,
		ImageKey:        refs.ImageKey,
		Filename:        rec.Source.Filename,
		ContentType:     rec.Source.ContentType,
		UserID:          rec.Source.UserID,
		MealType:        rec.Source.MealType,
		MealTime:        mealTime.UTC().Format(time.RFC3339),
		TS:              mealTime.Unix(),
		Region:          s.region,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(&doc)
	if err != nil {
		return refs, core.NewPartialPersist("persist record", refs, err)
	}

	if err := s.objects.Put(ctx, s.bucket, refs.RecordKey, data, "application/json"); err != nil {
		s.logger.Warn("metadata record write failed after image write",
			"identity", id, "imageKey", refs.ImageKey, "err", err)
		return refs, core.NewPartialPersist("persist record", refs, err)
	}

	s.logger.Debug("persisted artifacts", "identity", id,
		"imageKey", refs.ImageKey, "recordKey", refs.RecordKey)
	return refs, nil
}

// GetImage fetches the stored image bytes for an identity-keyed ref.
func (s *Store) GetImage(ctx context.Context, refs core.ArtifactRefs) ([]byte, error) {
	data, err := s.objects.Get(ctx, refs.Bucket, refs.ImageKey)
	if err != nil {
		return nil, core.ClassifyRemote("get image", err)
	}
	return data, nil
}

// GetRecord fetches and decodes the metadata record for an identity.
func (s *Store) GetRecord(ctx context.Context, id core.ID) (*Record, error) {
	data, err := s.objects.Get(ctx, s.bucket, RecordKey(s.recordsPrefix, id))
	if err != nil {
		return nil, core.ClassifyRemote("get record", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, core.NewItemError(core.KindPermanent, "decode record", err)
	}
	return &rec, nil
}
