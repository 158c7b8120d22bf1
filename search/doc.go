// Package search routes similarity queries against the vector index.
//
// Queries embed text or an image, run filtered against the standard
// collection or unfiltered against the bulk collection, and always leave
// exactly one metrics event behind.
package search
