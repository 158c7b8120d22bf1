package ai

import "context"

// Embedder generates fixed-length multimodal embeddings from image bytes
// and optional auxiliary text. Implementations must be thread-safe for
// concurrent use.
type Embedder interface {
	// EmbedImage generates a vector embedding for the image, optionally
	// conditioned on auxiliary text (usually a generated description).
	// Returns an error if the embedding generation fails.
	EmbedImage(ctx context.Context, image []byte, text string) ([]float32, error)

	// EmbedText generates a vector embedding for a text-only query in the
	// same vector space as image embeddings.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Describer produces a textual description of an image.
// Implementations must be thread-safe for concurrent use.
type Describer interface {
	// Describe analyzes the image and returns a textual description
	// suitable as auxiliary context for a multimodal embedding.
	Describe(ctx context.Context, image []byte, contentType string) (string, error)
}

// Provider aggregates the embedding and description capabilities for
// convenient initialization and lifecycle management.
type Provider interface {
	// Embedder returns the multimodal embedding service.
	Embedder() Embedder

	// Describer returns the image description service.
	Describer() Describer

	// Close releases resources held by the provider and its services.
	Close() error
}
