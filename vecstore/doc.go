// Package vecstore contains the vector index capability and the chunked
// write pipeline that feeds it.
//
// The Index interface abstracts the vector database; QdrantIndex is the
// production adapter. Writer splits large point sets into ordered chunks,
// retries transient chunk failures, and reports per-point outcomes instead
// of failing the whole batch.
package vecstore
