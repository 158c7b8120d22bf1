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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the pipeline. It is loaded once at
// startup, validated, and never mutated after.
type Config struct {
	AI       AIConfig       `yaml:"ai"`
	Index    IndexConfig    `yaml:"index"`
	Artifact ArtifactConfig `yaml:"artifact"`
	Bulk     BulkConfig     `yaml:"bulk"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AIConfig holds model provider configuration.
type AIConfig struct {
	Provider       string `yaml:"provider"` // "bedrock" or "mock"
	Region         string `yaml:"region"`
	EmbeddingModel string `yaml:"embedding_model"`
	VisionModel    string `yaml:"vision_model"`
	VisionHost     string `yaml:"vision_host"` // OpenAI-compatible endpoint, optional
	Dimension      int    `yaml:"dimension"`
	CallTimeoutSec int    `yaml:"call_timeout_seconds"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Host               string  `yaml:"host"`
	Port               int     `yaml:"port"`
	APIKeyEnv          string  `yaml:"api_key_env"` // Environment variable for API key
	UseTLS             bool    `yaml:"use_tls"`
	StandardCollection string  `yaml:"standard_collection"`
	BulkCollection     string  `yaml:"bulk_collection"`
	ChunkSize          int     `yaml:"chunk_size"`
	CallTimeoutSec     int     `yaml:"call_timeout_seconds"`
	StandardThreshold  float32 `yaml:"standard_threshold"`
	BulkThreshold      float32 `yaml:"bulk_threshold"`
}

// ArtifactConfig holds object storage configuration.
type ArtifactConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	AccessKeyEnv  string `yaml:"access_key_env"`
	SecretKeyEnv  string `yaml:"secret_key_env"`
	UseSSL        bool   `yaml:"use_ssl"`
	ImagesPrefix  string `yaml:"images_prefix"`
	RecordsPrefix string `yaml:"records_prefix"`
}

// BulkConfig holds bulk ingestion configuration.
type BulkConfig struct {
	Workers int `yaml:"workers"` // 0 means NumCPU/2
}

// MetricsConfig holds event log configuration.
type MetricsConfig struct {
	Path        string `yaml:"path"`
	RecentLimit int    `yaml:"recent_limit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			Provider:       "bedrock",
			Region:         "us-east-1",
			EmbeddingModel: "amazon.titan-embed-image-v1",
			VisionModel:    "us.anthropic.claude-3-5-sonnet-20241022-v2:0",
			Dimension:      1024,
			CallTimeoutSec: 60,
		},
		Index: IndexConfig{
			Host:               "localhost",
			Port:               6334,
			APIKeyEnv:          "QDRANT_API_KEY",
			StandardCollection: "meals",
			BulkCollection:     "meals_bulk",
			ChunkSize:          512,
			CallTimeoutSec:     30,
			StandardThreshold:  0.1,
			BulkThreshold:      0.15,
		},
		Artifact: ArtifactConfig{
			Endpoint:      "http://localhost:9000",
			Bucket:        "mealdex",
			Region:        "us-east-1",
			AccessKeyEnv:  "MEALDEX_ACCESS_KEY",
			SecretKeyEnv:  "MEALDEX_SECRET_KEY",
			ImagesPrefix:  "images/",
			RecordsPrefix: "embeddings/",
		},
		Metrics: MetricsConfig{
			Path:        "data/metrics",
			RecentLimit: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers environment overrides onto the loaded values. Only the
// knobs that routinely differ between deployments are overridable.
func (c *Config) applyEnv() {
	if v := os.Getenv("MEALDEX_AWS_REGION"); v != "" {
		c.AI.Region = v
	}
	if v := os.Getenv("MEALDEX_QDRANT_HOST"); v != "" {
		c.Index.Host = v
	}
	if v := os.Getenv("MEALDEX_QDRANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Index.Port = port
		}
	}
	if v := os.Getenv("MEALDEX_S3_ENDPOINT"); v != "" {
		c.Artifact.Endpoint = v
	}
	if v := os.Getenv("MEALDEX_BUCKET"); v != "" {
		c.Artifact.Bucket = v
	}
	if v := os.Getenv("MEALDEX_METRICS_PATH"); v != "" {
		c.Metrics.Path = v
	}
}

// Validate checks the configuration before any component is built.
func (c *Config) Validate() error {
	if c.AI.Provider != "bedrock" && c.AI.Provider != "mock" {
		return fmt.Errorf("config: unknown ai provider %q", c.AI.Provider)
	}
	if c.AI.Dimension <= 0 {
		return fmt.Errorf("config: dimension must be positive, got %d", c.AI.Dimension)
	}
	if c.Index.Host == "" {
		return fmt.Errorf("config: index host is required")
	}
	if c.Index.StandardCollection == "" || c.Index.BulkCollection == "" {
		return fmt.Errorf("config: both collections are required")
	}
	if c.Index.StandardCollection == c.Index.BulkCollection {
		return fmt.Errorf("config: standard and bulk collections must differ")
	}
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk size must be positive, got %d", c.Index.ChunkSize)
	}
	if c.Artifact.Bucket == "" {
		return fmt.Errorf("config: artifact bucket is required")
	}
	if c.Bulk.Workers < 0 {
		return fmt.Errorf("config: bulk workers must not be negative, got %d", c.Bulk.Workers)
	}
	return nil
}

// IndexAPIKey resolves the index API key from the environment.
func (c *Config) IndexAPIKey() string {
	if c.Index.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Index.APIKeyEnv)
}

// ArtifactCredentials resolves object store credentials from the
// environment.
func (c *Config) ArtifactCredentials() (accessKey, secretKey string) {
	return os.Getenv(c.Artifact.AccessKeyEnv), os.Getenv(c.Artifact.SecretKeyEnv)
}

// CallTimeout returns the model call timeout as a duration.
func (c *AIConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

// CallTimeout returns the index call timeout as a duration.
func (c *IndexConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}
