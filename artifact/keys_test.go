package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mealdex/mealdex/core"
)

func TestExtFromMIME(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		filename    string
		want        string
	}{
		{"jpeg", "image/jpeg", "photo.jpeg", ".jpg"},
		{"png", "image/png", "", ".png"},
		{"case insensitive", "IMAGE/PNG", "", ".png"},
		{"unknown type falls back to filename", "application/octet-stream", "dinner.webp", ".webp"},
		{"no type no extension", "", "noext", ""},
		{"trailing dot", "", "weird.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtFromMIME(tt.contentType, tt.filename))
		})
	}
}

func TestKeysAreParallel(t *testing.T) {
	id := core.ID("0b9f8a1e-1111-2222-3333-444455556666")

	imageKey := ImageKey(DefaultImagesPrefix, id, ".jpg")
	recordKey := RecordKey(DefaultRecordsPrefix, id)

	assert.Equal(t, "images/0b9f8a1e-1111-2222-3333-444455556666.jpg", imageKey)
	assert.Equal(t, "embeddings/0b9f8a1e-1111-2222-3333-444455556666.json", recordKey)
}
