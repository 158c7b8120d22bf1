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


// Package bedrock implements the ai interfaces on AWS Bedrock, matching the
// original deployment: Titan multimodal embeddings and Claude vision
// descriptions, both through the bedrock-runtime InvokeModel API.
package bedrock

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/mealdex/mealdex/ai"
)

// Provider aggregates the Bedrock-backed embedder and describer.
type Provider struct {
	embedder  *Embedder
	describer *Describer
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a Bedrock provider using the standard AWS credential
// chain and the configured region.
//
// Returns ai.Provider interface to enforce abstraction.
func NewProvider(ctx context.Context, config *ai.Config) (ai.Provider, error) {
	if config == nil {
		config = ai.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(config.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := bedrockruntime.NewFromConfig(awsCfg)

	embedder, err := newEmbedder(client, config)
	if err != nil {
		return nil, err
	}
	describer, err := newDescriber(client, config)
	if err != nil {
		return nil, err
	}

	return &Provider{embedder: embedder, describer: describer}, nil
}

// Embedder returns the Titan multimodal embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Describer returns the Claude vision description service.
func (p *Provider) Describer() ai.Describer {
	return p.describer
}

// Close releases provider resources. The Bedrock runtime client holds no
// persistent connections, so this is a no-op.
func (p *Provider) Close() error {
	return nil
}
