package vecstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealdex/mealdex/core"
	"github.com/mealdex/mealdex/retry"
)

// fakeIndex implements Index in memory with injectable per-call failures.
type fakeIndex struct {
	mu          sync.Mutex
	points      map[core.ID]core.VectorPoint
	upsertCalls int
	chunkSizes  []int
	ensured     int
	failures    []error // consumed one per Upsert call, nil means success
	ensureFails []error // consumed one per EnsureCollection call
	ensureErr   error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: make(map[core.ID]core.VectorPoint)}
}

func (f *fakeIndex) EnsureCollection(ctx context.Context, collection string, dim int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured++
	if len(f.ensureFails) > 0 {
		err := f.ensureFails[0]
		f.ensureFails = f.ensureFails[1:]
		if err != nil {
			return err
		}
	}
	return f.ensureErr
}

func (f *fakeIndex) Upsert(ctx context.Context, collection string, points []core.VectorPoint, wait bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		if err != nil {
			return err
		}
	}
	f.chunkSizes = append(f.chunkSizes, len(points))
	for _, p := range points {
		f.points[p.Identity] = p
	}
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, collection string, vector []float32, topK int, filter *core.Filter, scoreThreshold float32) ([]core.ScoredResult, error) {
	return nil, nil
}

func (f *fakeIndex) Retrieve(ctx context.Context, collection string, id core.ID) (*core.ScoredResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.points[id]; ok {
		return &core.ScoredResult{Identity: p.Identity, Payload: p.Payload.Map()}, nil
	}
	return nil, nil
}

func makePoints(n int) []core.VectorPoint {
	points := make([]core.VectorPoint, n)
	for i := range points {
		points[i] = core.VectorPoint{
			Identity: core.ID(fmt.Sprintf("id-%04d", i)),
			Vector:   []float32{float32(i), 1, 2},
		}
	}
	return points
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func TestWriteSplitsIntoChunks(t *testing.T) {
	index := newFakeIndex()
	writer := NewWriter(index, WithRetryPolicy(fastRetry()))

	report, err := writer.Write(context.Background(), "meals", 3, makePoints(600))
	require.NoError(t, err)

	assert.Equal(t, 600, report.Attempted)
	assert.Len(t, report.SucceededIDs, 600)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, []int{512, 88}, index.chunkSizes)
	assert.True(t, report.AllSucceeded())
	assert.Equal(t, 1, index.ensured)
}

func TestWriteChunkSizeOneEquivalence(t *testing.T) {
	index := newFakeIndex()
	writer := NewWriter(index, WithChunkSize(1), WithRetryPolicy(fastRetry()))

	report, err := writer.Write(context.Background(), "meals", 3, makePoints(5))
	require.NoError(t, err)

	assert.Equal(t, 5, report.Chunks)
	assert.Len(t, report.SucceededIDs, 5)
	assert.Equal(t, []int{1, 1, 1, 1, 1}, index.chunkSizes)
}

func TestWriteRetriesTransientChunk(t *testing.T) {
	index := newFakeIndex()
	index.failures = []error{
		core.NewItemError(core.KindTransient, "upsert", errors.New("timeout")),
	}
	writer := NewWriter(index, WithRetryPolicy(fastRetry()))

	report, err := writer.Write(context.Background(), "meals", 3, makePoints(10))
	require.NoError(t, err)

	assert.True(t, report.AllSucceeded())
	assert.Equal(t, 2, index.upsertCalls)
	assert.Equal(t, 1, report.Chunks)
}

func TestWritePermanentChunkRecordedNotRetried(t *testing.T) {
	index := newFakeIndex()
	index.failures = []error{
		core.NewItemError(core.KindPermanent, "upsert", errors.New("invalid vector")),
	}
	writer := NewWriter(index, WithChunkSize(5), WithRetryPolicy(fastRetry()))

	report, err := writer.Write(context.Background(), "meals", 3, makePoints(10))
	require.NoError(t, err)

	// First chunk failed permanently, second chunk still ran.
	assert.Equal(t, 2, index.upsertCalls)
	assert.Len(t, report.SucceededIDs, 5)
	assert.Len(t, report.Failed, 5)
	assert.False(t, report.AllSucceeded())
	for _, reason := range report.Failed {
		assert.Contains(t, reason, "permanent")
	}
}

func TestWriteEnsureFailureAbortsBeforeAnyPoint(t *testing.T) {
	index := newFakeIndex()
	index.ensureErr = core.NewItemError(core.KindConfigFatal, "ensure collection",
		errors.New("dimension mismatch"))
	writer := NewWriter(index, WithRetryPolicy(fastRetry()))

	report, err := writer.Write(context.Background(), "meals", 3, makePoints(10))
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, 0, index.upsertCalls)
	assert.Equal(t, core.KindConfigFatal, core.KindOf(err))
	assert.Equal(t, 1, index.ensured)
}

func TestWriteRetriesTransientEnsure(t *testing.T) {
	index := newFakeIndex()
	index.ensureFails = []error{
		core.NewItemError(core.KindTransient, "ensure collection",
			errors.New("qdrant unavailable")),
	}
	writer := NewWriter(index, WithRetryPolicy(fastRetry()))

	report, err := writer.Write(context.Background(), "meals", 3, makePoints(10))
	require.NoError(t, err)
	assert.Equal(t, 2, index.ensured)
	assert.Len(t, report.SucceededIDs, 10)
	assert.True(t, report.AllSucceeded())
}

func TestWriteEmptyInput(t *testing.T) {
	index := newFakeIndex()
	writer := NewWriter(index)

	report, err := writer.Write(context.Background(), "meals", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, 0, index.ensured)
}

func TestWriteCancellationStopsBetweenChunks(t *testing.T) {
	index := newFakeIndex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer := NewWriter(index, WithChunkSize(5), WithRetryPolicy(fastRetry()))
	report, err := writer.Write(ctx, "meals", 3, makePoints(10))
	require.NoError(t, err)

	// No chunk started after cancellation, every point reported failed.
	assert.Equal(t, 0, index.upsertCalls)
	assert.Len(t, report.Failed, 10)
	assert.Empty(t, report.SucceededIDs)
}
