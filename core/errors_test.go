package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	itemErr := NewItemError(KindTransient, "embed image", cause)

	assert.ErrorIs(t, itemErr, cause)
	assert.Contains(t, itemErr.Error(), "embed image")
	assert.Contains(t, itemErr.Error(), "transient")
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "classified error",
			err:  NewItemError(KindPermanent, "op", errors.New("invalid")),
			want: KindPermanent,
		},
		{
			name: "wrapped classified error",
			err:  fmt.Errorf("outer: %w", NewItemError(KindSchemaMismatch, "op", errors.New("dim"))),
			want: KindSchemaMismatch,
		},
		{
			name: "context deadline",
			err:  context.DeadlineExceeded,
			want: KindTransient,
		},
		{
			name: "plain error defaults transient",
			err:  errors.New("connection reset"),
			want: KindTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewItemError(KindTransient, "op", errors.New("timeout"))))
	assert.False(t, IsRetryable(NewItemError(KindPermanent, "op", errors.New("quota"))))
	assert.False(t, IsRetryable(NewItemError(KindSchemaMismatch, "op", errors.New("dim"))))
	assert.False(t, IsRetryable(NewItemError(KindConfigFatal, "op", errors.New("bad config"))))
}

func TestClassifyRemote(t *testing.T) {
	tests := []struct {
		err  string
		want ErrorKind
	}{
		{"ThrottlingException: rate exceeded", KindTransient},
		{"request timeout after 30s", KindTransient},
		{"service unavailable", KindTransient},
		{"ValidationException: invalid input image", KindPermanent},
		{"access denied for model", KindPermanent},
		{"quota exceeded for account", KindPermanent},
		{"something unexpected", KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			classified := ClassifyRemote("call model", errors.New(tt.err))
			require.NotNil(t, classified)
			assert.Equal(t, tt.want, classified.Kind)
		})
	}
}

func TestNewPartialPersist(t *testing.T) {
	refs := ArtifactRefs{Bucket: "b", ImageKey: "images/x.jpg"}
	err := NewPartialPersist("persist record", refs, errors.New("write failed"))

	assert.Equal(t, KindPartialPersist, err.Kind)
	require.NotNil(t, err.Refs)
	assert.Equal(t, "images/x.jpg", err.Refs.ImageKey)
	assert.False(t, IsRetryable(err))
}
