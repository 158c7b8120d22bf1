package ingestion

import "errors"

var (
	// ErrProviderRequired is returned when an AI provider is not provided.
	ErrProviderRequired = errors.New("AI provider required")

	// ErrArtifactStoreRequired is returned when an artifact store is not provided.
	ErrArtifactStoreRequired = errors.New("artifact store required")

	// ErrWriterRequired is returned when an index writer is not provided.
	ErrWriterRequired = errors.New("index writer required")

	// ErrEmptyImage is returned when the ingested image has no bytes.
	ErrEmptyImage = errors.New("image is empty")
)
