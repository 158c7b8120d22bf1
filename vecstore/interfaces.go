package vecstore

import (
	"context"

	"github.com/mealdex/mealdex/core"
)

// Index is the capability contract against the vector database. Adapters
// classify their errors so callers can distinguish retryable failures.
type Index interface {
	// EnsureCollection creates the named collection with the given dimension
	// if it does not already exist, and verifies the dimension when it does.
	// It also provisions the payload field indexes queries filter on.
	EnsureCollection(ctx context.Context, collection string, dim int) error

	// Upsert writes the points into the collection. Identity collisions
	// replace the stored point. When wait is true the call does not return
	// until the write is durable.
	Upsert(ctx context.Context, collection string, points []core.VectorPoint, wait bool) error

	// Query runs a similarity search and returns up to topK scored hits in
	// descending score order. A nil or empty filter matches everything.
	// Hits scoring below scoreThreshold are dropped when it is > 0.
	Query(ctx context.Context, collection string, vector []float32, topK int, filter *core.Filter, scoreThreshold float32) ([]core.ScoredResult, error)

	// Retrieve fetches a single point by identity. It returns nil, nil when
	// the identity is not present.
	Retrieve(ctx context.Context, collection string, id core.ID) (*core.ScoredResult, error)
}
