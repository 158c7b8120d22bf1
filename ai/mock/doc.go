// Package mock provides test double implementations of the AI service
// interfaces.
//
// The mocks allow pipeline tests to run without external AI services and
// with controlled, deterministic behavior:
//
//	// Basic usage with default behavior
//	provider := mock.NewMockProvider()
//	vec, err := provider.Embedder().EmbedImage(ctx, img, "")
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedImageFunc = func(ctx context.Context, image []byte, text string) ([]float32, error) {
//	    return nil, errors.New("unavailable")
//	}
//
// Default behavior is deterministic: MockEmbedder derives vectors from an
// FNV hash of its input, so equal inputs always embed identically.
package mock
