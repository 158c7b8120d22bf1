package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "bedrock", cfg.AI.Provider)
	assert.Equal(t, 1024, cfg.AI.Dimension)
	assert.Equal(t, "meals", cfg.Index.StandardCollection)
	assert.Equal(t, "meals_bulk", cfg.Index.BulkCollection)
	assert.Equal(t, 512, cfg.Index.ChunkSize)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mealdex.yaml")
	content := `
ai:
  provider: mock
  dimension: 256
index:
  host: qdrant.internal
  chunk_size: 64
artifact:
  bucket: photos
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.AI.Provider)
	assert.Equal(t, 256, cfg.AI.Dimension)
	assert.Equal(t, "qdrant.internal", cfg.Index.Host)
	assert.Equal(t, 64, cfg.Index.ChunkSize)
	assert.Equal(t, "photos", cfg.Artifact.Bucket)
	// Untouched values keep their defaults.
	assert.Equal(t, "meals", cfg.Index.StandardCollection)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MEALDEX_QDRANT_HOST", "qdrant.prod")
	t.Setenv("MEALDEX_QDRANT_PORT", "7001")
	t.Setenv("MEALDEX_BUCKET", "prod-photos")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "qdrant.prod", cfg.Index.Host)
	assert.Equal(t, 7001, cfg.Index.Port)
	assert.Equal(t, "prod-photos", cfg.Artifact.Bucket)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.AI.Provider = "magic" }},
		{"zero dimension", func(c *Config) { c.AI.Dimension = 0 }},
		{"missing host", func(c *Config) { c.Index.Host = "" }},
		{"missing collection", func(c *Config) { c.Index.StandardCollection = "" }},
		{"same collections", func(c *Config) { c.Index.BulkCollection = c.Index.StandardCollection }},
		{"zero chunk size", func(c *Config) { c.Index.ChunkSize = 0 }},
		{"missing bucket", func(c *Config) { c.Artifact.Bucket = "" }},
		{"negative workers", func(c *Config) { c.Bulk.Workers = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestCredentialResolution(t *testing.T) {
	t.Setenv("MEALDEX_ACCESS_KEY", "ak")
	t.Setenv("MEALDEX_SECRET_KEY", "sk")
	t.Setenv("QDRANT_API_KEY", "qk")

	cfg := DefaultConfig()
	access, secret := cfg.ArtifactCredentials()
	assert.Equal(t, "ak", access)
	assert.Equal(t, "sk", secret)
	assert.Equal(t, "qk", cfg.IndexAPIKey())
}
