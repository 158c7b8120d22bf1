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
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/mealdex/mealdex/ai"
)

const describePrompt = `Describe this food image in 2-3 sentences. Name the dish if recognizable, ` +
	`list the main visible ingredients, and note presentation details that would help ` +
	`distinguish this meal from similar ones. Respond with the description only.`

const maxDescriptionTokens = 512

// anthropicRequest is the InvokeModel body for Claude messages on Bedrock.
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Describer implements ai.Describer using Claude vision models on Bedrock.
type Describer struct {
	client *bedrockruntime.Client
	config *ai.Config
	logger *slog.Logger
}

// newDescriber is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newDescriber(client *bedrockruntime.Client, config *ai.Config) (*Describer, error) {
	if config.VisionModel == "" {
		return nil, fmt.Errorf("bedrock describer: VisionModel is required")
	}
	return &Describer{
		client: client,
		config: config,
		logger: slog.Default().With("component", "bedrock-describer"),
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

	req := anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxDescriptionTokens,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicContent{
				{
					Type: "image",
					Source: &anthropicSource{
						Type:      "base64",
						MediaType: contentType,
						Data:      base64.StdEncoding.EncodeToString(image),
					},
				},
				{Type: "text", Text: describePrompt},
			},
		}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal describe request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()

	out, err := d.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(d.config.VisionModel),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		d.logger.Error("description invocation failed", "model", d.config.VisionModel, "err", err)
		return "", fmt.Errorf("invoke %s: %w", d.config.VisionModel, err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decode describe response: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	description := strings.TrimSpace(sb.String())
	if description == "" {
		return "", fmt.Errorf("invoke %s: invalid response: empty description", d.config.VisionModel)
	}

	d.logger.Debug("generated description", "model", d.config.VisionModel, "length", len(description))
	return description, nil
}
