package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealdex/mealdex/metrics"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open("", true)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func TestAppendAndScan(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for _, i := range []int{3, 0, 4, 1, 2} {
		err := log.Append(ctx, &metrics.Event{
			Scope:     metrics.ScopeIngest,
			Mode:      metrics.ModeStandard,
			Owner:     "42",
			Outcome:   metrics.OutcomeSuccess,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	var seen []time.Time
	err := log.Scan(ctx, base, time.Time{}, func(e *metrics.Event) bool {
		seen = append(seen, e.Timestamp)
		return true
	})
	require.NoError(t, err)
	require.Len(t, seen, 5)

	// Ascending time order regardless of append order.
	for i := 1; i < len(seen); i++ {
		assert.True(t, seen[i].After(seen[i-1]))
	}
}

func TestScanWindowBounds(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 10; i++ {
		require.NoError(t, log.Append(ctx, &metrics.Event{
			Scope:     metrics.ScopeSearch,
			Mode:      metrics.ModeStandard,
			Outcome:   metrics.OutcomeSuccess,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	count := 0
	err := log.Scan(ctx, base.Add(2*time.Minute), base.Add(5*time.Minute), func(e *metrics.Event) bool {
		count++
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count) // minutes 2, 3, 4; upper bound exclusive
}

func TestScanEarlyStop(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(ctx, &metrics.Event{
			Scope:     metrics.ScopeIngest,
			Mode:      metrics.ModeBulk,
			Outcome:   metrics.OutcomeSuccess,
			Timestamp: time.Now().Add(-time.Duration(i+1) * time.Minute),
		}))
	}

	count := 0
	err := log.Scan(ctx, time.Now().Add(-time.Hour), time.Time{}, func(e *metrics.Event) bool {
		count++
		return count < 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRecentDescendingOrder(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	owners := []string{"a", "b", "c"}
	for i, owner := range owners {
		require.NoError(t, log.Append(ctx, &metrics.Event{
			Scope:     metrics.ScopeIngest,
			Mode:      metrics.ModeStandard,
			Owner:     owner,
			Outcome:   metrics.OutcomeSuccess,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	var seen []string
	err := log.Recent(ctx, 2, func(e *metrics.Event) bool {
		seen = append(seen, e.Owner)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, seen)
}

func TestAppendStampsZeroTimestamp(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, &metrics.Event{
		Scope:   metrics.ScopeIngest,
		Mode:    metrics.ModeStandard,
		Outcome: metrics.OutcomeSuccess,
	}))

	found := 0
	err := log.Scan(ctx, time.Now().Add(-time.Minute), time.Now().Add(time.Minute), func(e *metrics.Event) bool {
		found++
		assert.False(t, e.Timestamp.IsZero())
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 1, found)
}

func TestEventsSameMicrosecondDoNotCollide(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()
	ts := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(ctx, &metrics.Event{
			Scope:     metrics.ScopeIngest,
			Mode:      metrics.ModeStandard,
			Outcome:   metrics.OutcomeSuccess,
			Timestamp: ts,
		}))
	}

	count := 0
	err := log.Scan(ctx, ts.Add(-time.Second), ts.Add(time.Second), func(e *metrics.Event) bool {
		count++
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
