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
	"log/slog"
	"time"

	"github.com/mealdex/mealdex/ai"
	"github.com/mealdex/mealdex/core"
	"github.com/mealdex/mealdex/retry"
)

// Coordinator turns one raw image into an EmbeddingRecord. It owns the
// model calls: an optional description pass, then the multimodal embed,
// then dimension validation.
type Coordinator struct {
	embedder  ai.Embedder
	describer ai.Describer
	dimension int
	policy    retry.Policy
	logger    *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithDescriber enables the description pass. Without it records carry an
// empty description.
func WithDescriber(d ai.Describer) CoordinatorOption {
	return func(c *Coordinator) {
		c.describer = d
	}
}

// WithEmbedRetry sets the retry policy for transient model failures.
func WithEmbedRetry(p retry.Policy) CoordinatorOption {
	return func(c *Coordinator) {
		c.policy = p
	}
}

// WithCoordinatorLogger overrides the coordinator's logger.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a coordinator that produces vectors of the given
// dimension.
func NewCoordinator(embedder ai.Embedder, dimension int, opts ...CoordinatorOption) (*Coordinator, error) {
	if embedder == nil {
		return nil, ErrProviderRequired
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}

	c := &Coordinator{
		embedder:  embedder,
		dimension: dimension,
		policy:    retry.DefaultPolicy(),
		logger:    slog.Default().With("component", "coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Process runs one image through describe and embed and returns the
// completed record. The description pass is best-effort: a describer
// failure logs a warning and the record proceeds with an empty
// description. The embed pass is not: transient failures are retried,
// anything else fails the item.
func (c *Coordinator) Process(ctx context.Context, image []byte, source core.SourceMeta) (*core.EmbeddingRecord, error) {
	if len(image) == 0 {
		return nil, core.NewItemError(core.KindPermanent, "coordinate", ErrEmptyImage)
	}

	identity := core.NewID()
	// Default the meal time here so the stored record and the index
	// payload carry the same value.
	if source.MealTime.IsZero() {
		source.MealTime = time.Now().UTC()
	}
	description := c.describe(ctx, identity, image, source.ContentType)

	var vector []float32
	err := c.policy.Do(ctx, func() error {
		v, embedErr := c.embedder.EmbedImage(ctx, image, description)
		if embedErr != nil {
			return core.ClassifyRemote("embed image", embedErr)
		}
		vector = v
		return nil
	}, core.IsRetryable)
	if err != nil {
		return nil, err
	}

	// A wrong-sized vector means the configured model and collection
	// disagree. Retrying cannot fix that.
	if len(vector) != c.dimension {
		return nil, core.NewItemError(core.KindSchemaMismatch, "embed image",
			fmt.Errorf("model returned %d dimensions, expected %d", len(vector), c.dimension))
	}

	c.logger.Debug("item embedded",
		"identity", identity,
		"dimension", len(vector),
		"described", description != "")

	return &core.EmbeddingRecord{
		Identity:    identity,
		Vector:      vector,
		Description: description,
		ContentHash: core.ContentHash(image),
		Source:      source,
	}, nil
}

func (c *Coordinator) describe(ctx context.Context, identity core.ID, image []byte, contentType string) string {
	if c.describer == nil {
		return ""
	}
	description, err := c.describer.Describe(ctx, image, contentType)
	if err != nil {
		c.logger.Warn("description failed, continuing without",
			"identity", identity,
			"error", err)
		return ""
	}
	return description
}
