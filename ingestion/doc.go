// Package ingestion orchestrates the path from raw image to indexed
// vector point.
//
// The Coordinator owns the model calls. The Pipeline strings coordinator,
// artifact store, and index writer together, synchronously for individual
// items and over a worker pool for bulk runs.
package ingestion
