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

package vecstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/mealdex/mealdex/core"
)

// QdrantConfig configures the qdrant adapter.
type QdrantConfig struct {
	Host        string
	Port        int
	APIKey      string
	UseTLS      bool
	CallTimeout time.Duration
}

// DefaultQdrantConfig returns config for a local unauthenticated instance.
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host:        "localhost",
		Port:        6334,
		CallTimeout: 30 * time.Second,
	}
}

// QdrantIndex implements Index against a qdrant instance over gRPC.
type QdrantIndex struct {
	client *qdrant.Client
	config QdrantConfig
	logger *slog.Logger
}

var _ Index = (*QdrantIndex)(nil)

// indexedFields are the payload fields provisioned with a field index at
// collection creation so that filtered queries stay fast at scale.
var indexedFields = map[string]qdrant.FieldType{
	"user_id":   qdrant.FieldType_FieldTypeKeyword,
	"meal_type": qdrant.FieldType_FieldTypeKeyword,
	"ts":        qdrant.FieldType_FieldTypeInteger,
}

// NewQdrantIndex connects to qdrant and verifies the connection.
func NewQdrantIndex(config QdrantConfig) (*QdrantIndex, error) {
	if config.Host == "" {
		return nil, core.NewItemError(core.KindConfigFatal, "qdrant connect",
			fmt.Errorf("host is required"))
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = 30 * time.Second
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, core.NewItemError(core.KindConfigFatal, "qdrant connect", err)
	}

	return &QdrantIndex{
		client: client,
		config: config,
		logger: slog.Default().With("component", "qdrant-index"),
	}, nil
}

// EnsureCollection creates the collection and its payload indexes when
// missing. An existing collection with a different vector dimension is a
// fatal configuration error, never silently reused.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, collection string, dim int) error {
	ctx, cancel := context.WithTimeout(ctx, q.config.CallTimeout)
	defer cancel()

	exists, err := q.collectionExists(ctx, collection)
	if err != nil {
		return core.ClassifyRemote("ensure collection", err)
	}

	if exists {
		info, err := q.client.GetCollectionInfo(ctx, collection)
		if err != nil {
			return core.ClassifyRemote("ensure collection", err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != uint64(dim) {
			return core.NewItemError(core.KindConfigFatal, "ensure collection",
				fmt.Errorf("collection %s has dimension %d, expected %d", collection, size, dim))
		}
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return core.ClassifyRemote("create collection", err)
	}

	for field, fieldType := range indexedFields {
		ft := fieldType
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      field,
			FieldType:      &ft,
		})
		if err != nil {
			return core.ClassifyRemote("create field index", err)
		}
	}

	q.logger.Info("created collection",
		"collection", collection,
		"dimension", dim)
	return nil
}

func (q *QdrantIndex) collectionExists(ctx context.Context, collection string) (bool, error) {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range collections {
		if name == collection {
			return true, nil
		}
	}
	return false, nil
}

// Upsert writes points into the collection. Points are keyed by identity,
// so re-ingesting replaces rather than duplicates.
func (q *QdrantIndex) Upsert(ctx context.Context, collection string, points []core.VectorPoint, wait bool) error {
	if len(points) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, q.config.CallTimeout)
	defer cancel()

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for i := range points {
		p := &points[i]
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: string(p.Identity)}},
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload.Map()),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qdrantPoints,
		Wait:           &wait,
	})
	if err != nil {
		return core.ClassifyRemote("upsert points", err)
	}

	q.logger.Debug("upserted points",
		"collection", collection,
		"count", len(points))
	return nil
}

// Query runs a filtered similarity search.
func (q *QdrantIndex) Query(ctx context.Context, collection string, vector []float32, topK int, filter *core.Filter, scoreThreshold float32) ([]core.ScoredResult, error) {
	ctx, cancel := context.WithTimeout(ctx, q.config.CallTimeout)
	defer cancel()

	limit := uint64(topK)
	request := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         buildFilter(filter),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if scoreThreshold > 0 {
		request.ScoreThreshold = &scoreThreshold
	}

	hits, err := q.client.Query(ctx, request)
	if err != nil {
		return nil, core.ClassifyRemote("query points", err)
	}

	results := make([]core.ScoredResult, 0, len(hits))
	for _, hit := range hits {
		result := core.ScoredResult{Score: hit.Score}
		if uuid, ok := hit.Id.GetPointIdOptions().(*qdrant.PointId_Uuid); ok {
			result.Identity = core.ID(uuid.Uuid)
		}
		if hit.Payload != nil {
			result.Payload = convertPayload(hit.Payload)
		}
		results = append(results, result)
	}

	q.logger.Debug("query complete",
		"collection", collection,
		"hits", len(results),
		"top_k", topK)
	return results, nil
}

// Retrieve fetches a single point by identity, nil when absent.
func (q *QdrantIndex) Retrieve(ctx context.Context, collection string, id core.ID) (*core.ScoredResult, error) {
	ctx, cancel := context.WithTimeout(ctx, q.config.CallTimeout)
	defer cancel()

	points, err := q.client.Get(ctx, retrieveRequest(collection, id))
	if err != nil {
		return nil, core.ClassifyRemote("retrieve point", err)
	}
	if len(points) == 0 {
		return nil, nil
	}

	result := &core.ScoredResult{Identity: id}
	if points[0].Payload != nil {
		result.Payload = convertPayload(points[0].Payload)
	}
	return result, nil
}

// retrieveRequest builds the point lookup. The payload selector must be the
// enable form: an include selector with no fields strips the payload.
func retrieveRequest(collection string, id core.ID) *qdrant.GetPoints {
	return &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(string(id))},
		WithPayload:    qdrant.NewWithPayload(true),
	}
}

// Close releases the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// buildFilter translates the portable filter into qdrant conditions. All
// criteria are combined as a conjunction, meal types as a disjunction
// within it.
func buildFilter(f *core.Filter) *qdrant.Filter {
	if f.Empty() {
		return nil
	}

	var must []*qdrant.Condition
	if f.UserID != "" {
		must = append(must, qdrant.NewMatch("user_id", f.UserID))
	}
	if len(f.MealTypes) == 1 {
		must = append(must, qdrant.NewMatch("meal_type", f.MealTypes[0]))
	} else if len(f.MealTypes) > 1 {
		must = append(must, qdrant.NewMatchKeywords("meal_type", f.MealTypes...))
	}
	if f.TSFrom != 0 || f.TSTo != 0 {
		r := &qdrant.Range{}
		if f.TSFrom != 0 {
			gte := float64(f.TSFrom)
			r.Gte = &gte
		}
		if f.TSTo != 0 {
			lte := float64(f.TSTo)
			r.Lte = &lte
		}
		must = append(must, qdrant.NewRange("ts", r))
	}

	return &qdrant.Filter{Must: must}
}

// convertPayload flattens qdrant values into plain Go values.
func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for key, value := range payload {
		result[key] = convertValue(value)
	}
	return result
}

func convertValue(value *qdrant.Value) any {
	if value == nil {
		return nil
	}
	switch v := value.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(v.ListValue.Values))
		for i, item := range v.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayload(v.StructValue.Fields)
	default:
		return nil
	}
}
