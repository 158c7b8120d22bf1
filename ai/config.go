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

package ai

import (
	"errors"
	"time"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Region is the provider region for hosted services (Bedrock).
	Region string

	// EmbeddingModel is the multimodal embedding model identifier.
	// Example: "amazon.titan-embed-image-v1"
	EmbeddingModel string

	// VisionModel is the model identifier used for image descriptions.
	// For Bedrock this is an inference profile ID or ARN; for
	// OpenAI-compatible backends it is the model name (e.g. "llava").
	VisionModel string

	// VisionHost is the base URL for an OpenAI-compatible vision backend.
	// Ignored by the Bedrock provider.
	VisionHost string

	// Dimension is the expected embedding output length.
	Dimension int

	// CallTimeout bounds each remote call made by the provider.
	// Default: 60s.
	CallTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithRegion sets the hosted-provider region.
func WithRegion(region string) ConfigOption {
	return func(c *Config) {
		c.Region = region
	}
}

// WithEmbeddingModel sets the multimodal embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithVisionModel sets the vision model identifier.
func WithVisionModel(model string) ConfigOption {
	return func(c *Config) {
		c.VisionModel = model
	}
}

// WithVisionHost sets the OpenAI-compatible vision backend host URL.
func WithVisionHost(host string) ConfigOption {
	return func(c *Config) {
		c.VisionHost = host
	}
}

// WithDimension sets the expected embedding output length.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// WithCallTimeout sets the per-call timeout for remote operations.
func WithCallTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.CallTimeout = d
	}
}

// DefaultConfig returns a Config with the defaults used by the original
// deployment: Titan multimodal embeddings at 1024 dimensions.
func DefaultConfig() *Config {
	return &Config{
		Region:         "us-east-1",
		EmbeddingModel: "amazon.titan-embed-image-v1",
		VisionModel:    "us.anthropic.claude-3-5-sonnet-20241022-v2:0",
		Dimension:      1024,
		CallTimeout:    60 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the
// provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks the configuration for obvious misconfiguration.
func (c *Config) Validate() error {
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Dimension <= 0 {
		return errors.New("ai config: Dimension must be positive")
	}
	if c.CallTimeout <= 0 {
		return errors.New("ai config: CallTimeout must be positive")
	}
	return nil
}
