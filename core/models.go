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

package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is the unique identity assigned to an item at ingestion start.
// It is used as the artifact key suffix, the vector point id, and the
// correlation key across logs and metrics events.
type ID string

// NewID generates a fresh item identity.
func NewID() ID {
	return ID(uuid.NewString())
}

// BulkUserID is the fixed owner identity substituted for all bulk-path
// writes. Metrics use it to discriminate bulk from individual activity.
const BulkUserID = "999999"

// ContentHash computes a BLAKE2b-128 hash of the raw image bytes.
// Identical images always produce identical hashes, which makes the
// hash usable for dedup and provenance checks downstream.
func ContentHash(data []byte) string {
	h, _ := blake2b.New(16, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SourceMeta carries caller-supplied metadata about an ingested image.
type SourceMeta struct {
	Filename    string
	ContentType string
	UserID      string
	MealType    string
	MealTime    time.Time
}

// EmbeddingRecord is the result of running an item through the embedding
// coordinator. Created once per ingested item and never mutated.
type EmbeddingRecord struct {
	Identity    ID
	Vector      []float32
	Description string
	ContentHash string
	Source      SourceMeta
}

// ArtifactRefs identifies the durable artifacts written for one item.
// Image and record live under parallel, identity-keyed paths so either
// can be located from the identity alone.
type ArtifactRefs struct {
	Bucket    string
	ImageKey  string
	RecordKey string
}

// Payload is the structured metadata attached to a vector point.
// UserID is the sole discriminator metrics use to classify an item as
// bulk vs individual.
type Payload struct {
	UserID          string `json:"user_id"`
	MealType        string `json:"meal_type"`
	TS              int64  `json:"ts"`
	ImageKey        string `json:"image_key"`
	RecordKey       string `json:"record_key"`
	Bucket          string `json:"bucket"`
	ModelID         string `json:"model_id"`
	Filename        string `json:"uploaded_filename"`
	ContentType     string `json:"content_type"`
	MealTime        string `json:"meal_time"`
	Timestamp       string `json:"timestamp"`
	Description     string `json:"generated_description"`
	EmbeddingLength int    `json:"embedding_length"`
	Region          string `json:"region"`
	ContentHash     string `json:"content_hash"`
}

// Map flattens the payload into the generic form the index client accepts.
func (p *Payload) Map() map[string]any {
	return map[string]any{
		"user_id":               p.UserID,
		"meal_type":             p.MealType,
		"ts":                    p.TS,
		"image_key":             p.ImageKey,
		"record_key":            p.RecordKey,
		"bucket":                p.Bucket,
		"model_id":              p.ModelID,
		"uploaded_filename":     p.Filename,
		"content_type":          p.ContentType,
		"meal_time":             p.MealTime,
		"timestamp":             p.Timestamp,
		"generated_description": p.Description,
		"embedding_length":      int64(p.EmbeddingLength),
		"region":                p.Region,
		"content_hash":          p.ContentHash,
	}
}

// VectorPoint is one (identity, vector, payload) tuple bound for the index.
// Re-ingesting the same identity replaces the point, it never duplicates.
type VectorPoint struct {
	Identity ID
	Vector   []float32
	Payload  Payload
}

// ScoredResult is one ranked hit from a similarity query.
type ScoredResult struct {
	Identity ID
	Score    float32
	Payload  map[string]any
}

// WriteReport summarizes one logical write-pipeline call. Partial failure
// is reported here, never raised as an error.
type WriteReport struct {
	Attempted    int
	SucceededIDs []ID
	Failed       map[ID]string
	Chunks       int
	Elapsed      time.Duration
}

// AllSucceeded reports whether every attempted point was written.
func (r *WriteReport) AllSucceeded() bool {
	return len(r.Failed) == 0 && len(r.SucceededIDs) == r.Attempted
}

// Filter is an optional conjunction of criteria applied server-side by the
// index. Zero-valued fields are omitted from the query.
type Filter struct {
	UserID    string
	MealTypes []string
	TSFrom    int64
	TSTo      int64
}

// Empty reports whether no criteria are set.
func (f *Filter) Empty() bool {
	return f == nil || (f.UserID == "" && len(f.MealTypes) == 0 && f.TSFrom == 0 && f.TSTo == 0)
}
