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

package bedrock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/mealdex/mealdex/ai"
)

// titanRequest is the InvokeModel body for Titan multimodal embeddings.
type titanRequest struct {
	InputText       string           `json:"inputText,omitempty"`
	InputImage      string           `json:"inputImage,omitempty"`
	EmbeddingConfig *embeddingConfig `json:"embeddingConfig,omitempty"`
}

type embeddingConfig struct {
	OutputEmbeddingLength int `json:"outputEmbeddingLength"`
}

type titanResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embedder implements ai.Embedder using Bedrock Titan multimodal embeddings.
type Embedder struct {
	client *bedrockruntime.Client
	config *ai.Config
	logger *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(client *bedrockruntime.Client, config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Embedder{
		client: client,
		config: config,
		logger: slog.Default().With("component", "bedrock-embedder"),
	}, nil
}

// EmbedImage generates a multimodal embedding from the image bytes and
// optional auxiliary text.
func (e *Embedder) EmbedImage(ctx context.Context, image []byte, text string) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("embed image: invalid input: empty image")
	}
	req := titanRequest{
		InputText:       text,
		InputImage:      base64.StdEncoding.EncodeToString(image),
		EmbeddingConfig: &embeddingConfig{OutputEmbeddingLength: e.config.Dimension},
	}
	return e.invoke(ctx, req)
}

// EmbedText generates a text-only embedding in the same vector space.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embed text: invalid input: empty text")
	}
	req := titanRequest{
		InputText:       text,
		EmbeddingConfig: &embeddingConfig{OutputEmbeddingLength: e.config.Dimension},
	}
	return e.invoke(ctx, req)
}

func (e *Embedder) invoke(ctx context.Context, req titanRequest) ([]float32, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.config.EmbeddingModel),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		e.logger.Error("embedding invocation failed", "model", e.config.EmbeddingModel, "err", err)
		return nil, fmt.Errorf("invoke %s: %w", e.config.EmbeddingModel, err)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("invoke %s: invalid response: empty embedding", e.config.EmbeddingModel)
	}

	e.logger.Debug("generated embedding", "model", e.config.EmbeddingModel, "dimension", len(resp.Embedding))
	return resp.Embedding, nil
}
