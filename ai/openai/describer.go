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


// Package openai provides an ai.Describer backed by OpenAI-compatible
// vision APIs, including local backends such as llava served by Ollama.
// Embeddings stay on the multimodal provider; this package only covers
// the description capability, which any vision chat model can serve.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mealdex/mealdex/ai"
)

const describePrompt = `Describe this food image in 2-3 sentences. Name the dish if recognizable, ` +
	`list the main visible ingredients, and note presentation details that would help ` +
	`distinguish this meal from similar ones. Respond with the description only.`

// Describer implements ai.Describer using an OpenAI-compatible vision model.
type Describer struct {
	llm    llms.Model
	config *ai.Config
	logger *slog.Logger
}

// NewDescriber creates a describer against the configured vision host.
// Use "none" as the token for local services that don't require auth.
//
// Returns ai.Describer interface to enforce abstraction.
func NewDescriber(config *ai.Config) (ai.Describer, error) {
	if config == nil || config.VisionHost == "" {
		return nil, fmt.Errorf("openai describer: VisionHost is required")
	}
	if config.VisionModel == "" {
		return nil, fmt.Errorf("openai describer: VisionModel is required")
	}

	client, err := openai.New(
		openai.WithBaseURL(config.VisionHost),
		openai.WithToken("none"),
		openai.WithModel(config.VisionModel),
	)
	if err != nil {
		return nil, err
	}

	return &Describer{
		llm:    client,
		config: config,
		logger: slog.Default().With("component", "openai-describer"),
	}, nil
}

// Describe generates a textual description of the image.
func (d *Describer) Describe(ctx context.Context, image []byte, contentType string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("describe: invalid input: empty image")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()

	resp, err := d.llm.GenerateContent(ctx, []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(contentType, image),
				llms.TextPart(describePrompt),
			},
		},
	}, llms.WithMaxTokens(512))
	if err != nil {
		d.logger.Error("description generation failed", "model", d.config.VisionModel, "err", err)
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("describe: invalid response: no choices")
	}
	description := strings.TrimSpace(resp.Choices[0].Content)
	if description == "" {
		return "", fmt.Errorf("describe: invalid response: empty description")
	}

	d.logger.Debug("generated description", "model", d.config.VisionModel, "length", len(description))
	return description, nil
}
