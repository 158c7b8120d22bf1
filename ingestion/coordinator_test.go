package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealdex/mealdex/ai/mock"
	"github.com/mealdex/mealdex/core"
	"github.com/mealdex/mealdex/retry"
)

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func testSource() core.SourceMeta {
	return core.SourceMeta{
		Filename:    "lunch.jpg",
		ContentType: "image/jpeg",
		UserID:      "42",
		MealType:    "lunch",
	}
}

func TestProcessProducesRecord(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8
	describer := mock.NewMockDescriber()

	coordinator, err := NewCoordinator(embedder, 8,
		WithDescriber(describer), WithEmbedRetry(fastRetry()))
	require.NoError(t, err)

	image := []byte("jpeg bytes")
	record, err := coordinator.Process(context.Background(), image, testSource())
	require.NoError(t, err)

	assert.NotEmpty(t, record.Identity)
	assert.Len(t, record.Vector, 8)
	assert.NotEmpty(t, record.Description)
	assert.Equal(t, core.ContentHash(image), record.ContentHash)
	assert.Equal(t, "42", record.Source.UserID)
	assert.Equal(t, 1, describer.CallCount())
}

func TestProcessStampsZeroMealTime(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 4

	coordinator, err := NewCoordinator(embedder, 4, WithEmbedRetry(fastRetry()))
	require.NoError(t, err)

	source := testSource()
	require.True(t, source.MealTime.IsZero())

	before := time.Now().Add(-time.Second)
	record, err := coordinator.Process(context.Background(), []byte("jpeg bytes"), source)
	require.NoError(t, err)

	// Record and index point both read Source.MealTime, so stamping it
	// once here keeps the two artifacts in agreement.
	assert.False(t, record.Source.MealTime.IsZero())
	assert.True(t, record.Source.MealTime.After(before))

	fixed := testSource()
	fixed.MealTime = time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)
	record, err = coordinator.Process(context.Background(), []byte("jpeg bytes"), fixed)
	require.NoError(t, err)
	assert.Equal(t, fixed.MealTime, record.Source.MealTime)
}

func TestProcessDescriberSoftFail(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 4
	describer := mock.NewMockDescriber()
	describer.DescribeFunc = func(ctx context.Context, image []byte, contentType string) (string, error) {
		return "", errors.New("vision model unavailable")
	}

	coordinator, err := NewCoordinator(embedder, 4,
		WithDescriber(describer), WithEmbedRetry(fastRetry()))
	require.NoError(t, err)

	record, err := coordinator.Process(context.Background(), []byte("x"), testSource())
	require.NoError(t, err)
	assert.Empty(t, record.Description)
	assert.Len(t, record.Vector, 4)
}

func TestProcessRetriesTransientEmbed(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	calls := 0
	embedder.EmbedImageFunc = func(ctx context.Context, image []byte, text string) ([]float32, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("request timeout")
		}
		return []float32{1, 2, 3, 4}, nil
	}

	coordinator, err := NewCoordinator(embedder, 4, WithEmbedRetry(fastRetry()))
	require.NoError(t, err)

	record, err := coordinator.Process(context.Background(), []byte("x"), testSource())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, record.Vector, 4)
}

func TestProcessPermanentEmbedNotRetried(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	calls := 0
	embedder.EmbedImageFunc = func(ctx context.Context, image []byte, text string) ([]float32, error) {
		calls++
		return nil, errors.New("ValidationException: invalid input image")
	}

	coordinator, err := NewCoordinator(embedder, 4, WithEmbedRetry(fastRetry()))
	require.NoError(t, err)

	_, err = coordinator.Process(context.Background(), []byte("x"), testSource())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, core.KindPermanent, core.KindOf(err))
}

func TestProcessDimensionMismatch(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedImageFunc = func(ctx context.Context, image []byte, text string) ([]float32, error) {
		return []float32{1, 2}, nil
	}

	coordinator, err := NewCoordinator(embedder, 4, WithEmbedRetry(fastRetry()))
	require.NoError(t, err)

	_, err = coordinator.Process(context.Background(), []byte("x"), testSource())
	require.Error(t, err)
	assert.Equal(t, core.KindSchemaMismatch, core.KindOf(err))
}

func TestProcessEmptyImage(t *testing.T) {
	coordinator, err := NewCoordinator(mock.NewMockEmbedder(), 4)
	require.NoError(t, err)

	_, err = coordinator.Process(context.Background(), nil, testSource())
	require.Error(t, err)
	assert.Equal(t, core.KindPermanent, core.KindOf(err))
}

func TestNewCoordinatorValidation(t *testing.T) {
	_, err := NewCoordinator(nil, 4)
	assert.ErrorIs(t, err, ErrProviderRequired)

	_, err = NewCoordinator(mock.NewMockEmbedder(), 0)
	assert.Error(t, err)
}
