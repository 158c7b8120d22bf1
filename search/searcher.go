// Copyright 2025 The Mealdex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/mealdex/mealdex/ai"
	"github.com/mealdex/mealdex/core"
	"github.com/mealdex/mealdex/metrics"
	"github.com/mealdex/mealdex/vecstore"
)

const (
	// DefaultTopK is used when the caller asks for zero or fewer hits.
	DefaultTopK = 5

	// MaxTopK caps how many hits one query may request.
	MaxTopK = 100

	// DefaultStandardThreshold drops weak matches on the standard path.
	DefaultStandardThreshold = 0.1

	// DefaultBulkThreshold drops weak matches on the bulk path.
	DefaultBulkThreshold = 0.15
)

// Query is one similarity search request. Exactly one of Text or Image
// should be set; when both are, the image wins and the text rides along as
// auxiliary input to the embedder.
type Query struct {
	Text        string
	Image       []byte
	ContentType string
	TopK        int
	Filter      *core.Filter
	Bulk        bool
}

// Searcher routes similarity queries to the right collection with the
// right filter discipline. Standard queries are filtered; bulk queries
// always run unfiltered against the bulk collection.
type Searcher struct {
	embedder           ai.Embedder
	index              vecstore.Index
	aggregator         *metrics.Aggregator
	standardCollection string
	bulkCollection     string
	standardThreshold  float32
	bulkThreshold      float32
	logger             *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithMetrics attaches a metrics aggregator. Without one the searcher
// runs silently.
func WithMetrics(aggregator *metrics.Aggregator) Option {
	return func(s *Searcher) error {
		s.aggregator = aggregator
		return nil
	}
}

// WithThresholds overrides the per-path score thresholds. Zero disables
// the cutoff for that path.
func WithThresholds(standard, bulk float32) Option {
	return func(s *Searcher) error {
		s.standardThreshold = standard
		s.bulkThreshold = bulk
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a searcher over the two collections.
func NewSearcher(
	embedder ai.Embedder,
	index vecstore.Index,
	standardCollection, bulkCollection string,
	opts ...Option,
) (*Searcher, error) {
	if embedder == nil {
		return nil, ErrProviderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	s := &Searcher{
		embedder:           embedder,
		index:              index,
		standardCollection: standardCollection,
		bulkCollection:     bulkCollection,
		standardThreshold:  DefaultStandardThreshold,
		bulkThreshold:      DefaultBulkThreshold,
		logger:             slog.Default().With("component", "search"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Search embeds the query and runs it against the index. Results come
// back in descending score order; ties keep index-native order. Every
// call records exactly one metrics event, including failed queries and
// zero-result successes.
func (s *Searcher) Search(ctx context.Context, query *Query) ([]core.ScoredResult, error) {
	timings := make(map[string]time.Duration)
	mode, owner := s.classify(query)

	if len(query.Image) == 0 && query.Text == "" {
		err := core.NewItemError(core.KindPermanent, "search", ErrEmptyQuery)
		s.record(ctx, mode, owner, timings, metrics.OutcomeFailure, nil, err)
		return nil, err
	}

	topK := clampTopK(query.TopK)

	stage := time.Now()
	vector, err := s.embedQuery(ctx, query)
	timings["embed"] = time.Since(stage)
	if err != nil {
		classified := core.ClassifyRemote("embed query", err)
		s.record(ctx, mode, owner, timings, metrics.OutcomeFailure, nil, classified)
		return nil, classified
	}

	collection := s.standardCollection
	filter := query.Filter
	threshold := s.standardThreshold
	if query.Bulk {
		// The bulk collection has one synthetic owner, filtering it
		// is meaningless.
		collection = s.bulkCollection
		filter = nil
		threshold = s.bulkThreshold
	}

	stage = time.Now()
	results, err := s.index.Query(ctx, collection, vector, topK, filter, threshold)
	timings["query"] = time.Since(stage)
	if err != nil {
		s.record(ctx, mode, owner, timings, metrics.OutcomeFailure, nil, err)
		return nil, err
	}

	s.record(ctx, mode, owner, timings, metrics.OutcomeSuccess, results, nil)
	s.logger.Debug("search complete",
		"collection", collection,
		"hits", len(results),
		"top_k", topK,
		"filtered", !filter.Empty())
	return results, nil
}

// Retrieve fetches one indexed item by identity, nil when absent.
func (s *Searcher) Retrieve(ctx context.Context, id core.ID, bulk bool) (*core.ScoredResult, error) {
	collection := s.standardCollection
	if bulk {
		collection = s.bulkCollection
	}
	return s.index.Retrieve(ctx, collection, id)
}

func (s *Searcher) embedQuery(ctx context.Context, query *Query) ([]float32, error) {
	if len(query.Image) > 0 {
		return s.embedder.EmbedImage(ctx, query.Image, query.Text)
	}
	return s.embedder.EmbedText(ctx, query.Text)
}

func (s *Searcher) classify(query *Query) (metrics.Mode, string) {
	if query.Bulk {
		return metrics.ModeBulk, core.BulkUserID
	}
	owner := ""
	if query.Filter != nil {
		owner = query.Filter.UserID
	}
	return metrics.ModeStandard, owner
}

func (s *Searcher) record(ctx context.Context, mode metrics.Mode, owner string,
	timings map[string]time.Duration, outcome metrics.Outcome, results []core.ScoredResult, err error) {
	if s.aggregator == nil {
		return
	}
	event := &metrics.Event{
		Scope:       metrics.ScopeSearch,
		Mode:        mode,
		Owner:       owner,
		Outcome:     outcome,
		Timings:     timings,
		ResultCount: len(results),
		Quality:     qualityOf(results),
		Timestamp:   time.Now().UTC(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	s.aggregator.Record(ctx, event)
}

func clampTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// qualityOf summarizes result scores, nil when there are none.
func qualityOf(results []core.ScoredResult) *metrics.Quality {
	if len(results) == 0 {
		return nil
	}
	q := &metrics.Quality{
		Top1: results[0].Score,
		Min:  results[0].Score,
		Max:  results[0].Score,
	}
	var total float64
	for _, r := range results {
		total += float64(r.Score)
		if r.Score < q.Min {
			q.Min = r.Score
		}
		if r.Score > q.Max {
			q.Max = r.Score
		}
	}
	q.TopKAvg = float32(total / float64(len(results)))
	return q
}
