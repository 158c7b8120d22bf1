package metrics

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealdex/mealdex/core"
)

// memoryLog implements EventLog in memory for aggregator tests.
type memoryLog struct {
	events    []*Event
	appendErr error
}

func (m *memoryLog) Append(ctx context.Context, event *Event) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memoryLog) Scan(ctx context.Context, from, to time.Time, fn func(*Event) bool) error {
	if to.IsZero() {
		to = time.Now()
	}
	sorted := append([]*Event(nil), m.events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	for _, e := range sorted {
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		if !fn(e) {
			return nil
		}
	}
	return nil
}

func (m *memoryLog) Recent(ctx context.Context, n int, fn func(*Event) bool) error {
	sorted := append([]*Event(nil), m.events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })
	for i, e := range sorted {
		if i >= n {
			break
		}
		if !fn(e) {
			break
		}
	}
	return nil
}

func eventAt(scope Scope, mode Mode, owner string, outcome Outcome, ago time.Duration) *Event {
	return &Event{
		Scope:     scope,
		Mode:      mode,
		Owner:     owner,
		Outcome:   outcome,
		Timestamp: time.Now().Add(-ago),
	}
}

func TestInModePredicate(t *testing.T) {
	tests := []struct {
		name     string
		event    *Event
		standard bool
	}{
		{"plain standard event", &Event{Mode: ModeStandard, Owner: "42"}, true},
		{"bulk tagged", &Event{Mode: ModeBulk, Owner: "42"}, false},
		{"bulk owner with standard tag", &Event{Mode: ModeStandard, Owner: core.BulkUserID}, false},
		{"bulk owner and tag", &Event{Mode: ModeBulk, Owner: core.BulkUserID}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.standard, tt.event.InMode(ModeStandard))
			assert.Equal(t, !tt.standard, tt.event.InMode(ModeBulk))
		})
	}
}

func TestSummarizeEmptyLog(t *testing.T) {
	aggregator := NewAggregator(&memoryLog{})

	summary, err := aggregator.Summarize(context.Background(), ModeStandard, time.Now().Add(-time.Hour), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Total)
	assert.Zero(t, summary.SuccessRate)
	assert.Empty(t, summary.MeanStageTimings)
	assert.Empty(t, summary.Recent)
}

func TestSummarizeExcludesOtherMode(t *testing.T) {
	log := &memoryLog{}
	aggregator := NewAggregator(log)
	ctx := context.Background()

	aggregator.Record(ctx, eventAt(ScopeIngest, ModeStandard, "42", OutcomeSuccess, time.Minute))
	aggregator.Record(ctx, eventAt(ScopeIngest, ModeStandard, "7", OutcomeFailure, time.Minute))
	aggregator.Record(ctx, eventAt(ScopeIngest, ModeBulk, core.BulkUserID, OutcomeSuccess, time.Minute))
	// Bulk owner leaking in with a standard tag still counts as bulk.
	aggregator.Record(ctx, eventAt(ScopeSearch, ModeStandard, core.BulkUserID, OutcomeSuccess, time.Minute))

	standard, err := aggregator.Summarize(ctx, ModeStandard, time.Now().Add(-time.Hour), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, standard.Total)
	assert.Equal(t, 2, standard.Ingests)
	assert.Equal(t, 1, standard.Successes)
	assert.Equal(t, 1, standard.Failures)
	assert.InDelta(t, 0.5, standard.SuccessRate, 1e-9)

	bulk, err := aggregator.Summarize(ctx, ModeBulk, time.Now().Add(-time.Hour), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, bulk.Total)
	assert.Equal(t, 1, bulk.Ingests)
	assert.Equal(t, 1, bulk.Searches)
}

func TestSummarizeTimingsAndQuality(t *testing.T) {
	log := &memoryLog{}
	aggregator := NewAggregator(log)
	ctx := context.Background()

	first := eventAt(ScopeSearch, ModeStandard, "42", OutcomeSuccess, 2*time.Minute)
	first.Timings = map[string]time.Duration{"embed": 100 * time.Millisecond, "query": 20 * time.Millisecond}
	first.ResultCount = 4
	first.Quality = &Quality{Top1: 0.9, TopKAvg: 0.7, Min: 0.5, Max: 0.9}
	aggregator.Record(ctx, first)

	second := eventAt(ScopeSearch, ModeStandard, "42", OutcomeSuccess, time.Minute)
	second.Timings = map[string]time.Duration{"embed": 300 * time.Millisecond}
	second.ResultCount = 2
	second.Quality = &Quality{Top1: 0.7, TopKAvg: 0.6, Min: 0.4, Max: 0.7}
	aggregator.Record(ctx, second)

	summary, err := aggregator.Summarize(ctx, ModeStandard, time.Now().Add(-time.Hour), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, summary.MeanStageTimings["embed"])
	assert.Equal(t, 20*time.Millisecond, summary.MeanStageTimings["query"])
	assert.InDelta(t, 3.0, summary.MeanResultCount, 1e-9)
	assert.Equal(t, 2, summary.ScoredCount)
	assert.InDelta(t, 0.8, float64(summary.MeanTop1), 1e-6)
	assert.InDelta(t, 0.65, float64(summary.MeanTopKAvg), 1e-6)
	assert.InDelta(t, 0.4, float64(summary.ScoreMin), 1e-6)
	assert.InDelta(t, 0.9, float64(summary.ScoreMax), 1e-6)
}

func TestSummarizeRecentAndOwners(t *testing.T) {
	log := &memoryLog{}
	aggregator := NewAggregator(log, WithRecentLimit(2))
	ctx := context.Background()

	aggregator.Record(ctx, eventAt(ScopeIngest, ModeStandard, "a", OutcomeSuccess, 3*time.Minute))
	aggregator.Record(ctx, eventAt(ScopeIngest, ModeStandard, "b", OutcomeSuccess, 2*time.Minute))
	aggregator.Record(ctx, eventAt(ScopeIngest, ModeStandard, "b", OutcomeSuccess, time.Minute))

	summary, err := aggregator.Summarize(ctx, ModeStandard, time.Now().Add(-time.Hour), time.Time{})
	require.NoError(t, err)

	require.Len(t, summary.Recent, 2)
	assert.Equal(t, "b", summary.Recent[0].Owner)

	owners := summary.TopOwners(5)
	require.Len(t, owners, 2)
	assert.Equal(t, "b", owners[0])
	assert.Equal(t, 2, summary.OwnerCounts["b"])
}

func TestSummarizeRecentSurvivesOffModeTail(t *testing.T) {
	log := &memoryLog{}
	for i := 0; i < 2; i++ {
		require.NoError(t, log.Append(context.Background(),
			eventAt(ScopeIngest, ModeStandard, "42", OutcomeSuccess, time.Duration(10+i)*time.Hour)))
	}
	// A bulk run floods the tail with newer events.
	for i := 0; i < 50; i++ {
		require.NoError(t, log.Append(context.Background(),
			eventAt(ScopeIngest, ModeBulk, "999999", OutcomeSuccess, time.Duration(i)*time.Minute)))
	}

	aggregator := NewAggregator(log, WithRecentLimit(2))
	summary, err := aggregator.Summarize(context.Background(), ModeStandard,
		time.Now().Add(-24*time.Hour), time.Time{})
	require.NoError(t, err)

	require.Len(t, summary.Recent, 2)
	for _, e := range summary.Recent {
		assert.Equal(t, ModeStandard, e.Mode)
	}
}

func TestRecordSwallowsAppendFailure(t *testing.T) {
	log := &memoryLog{appendErr: errors.New("disk full")}
	aggregator := NewAggregator(log)

	// Must not panic or propagate.
	aggregator.Record(context.Background(), eventAt(ScopeIngest, ModeStandard, "42", OutcomeSuccess, 0))
	assert.Empty(t, log.events)
}
