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


// Package ai provides abstractions for the AI capabilities used in Mealdex.
//
// The ingestion and search pipelines depend on two remote capabilities:
// multimodal embedding generation and image description. This package
// defines both as interfaces so the pipelines never couple to a concrete
// provider:
//
//   - Embedder: generates fixed-length vectors from image bytes and text
//   - Describer: generates a textual description of an image
//   - Provider: aggregates both for initialization and lifecycle
//
// # Implementation Packages
//
//   - ai/bedrock: AWS Bedrock implementation (Titan multimodal embeddings
//     plus Claude vision descriptions), matching the original deployment
//   - ai/openai: OpenAI-compatible vision describer for local backends
//   - ai/mock: deterministic test doubles with behavior injection
//
// Production constructors return interface types; mock constructors return
// concrete types so tests can assert on call counts and inject behavior.
package ai
