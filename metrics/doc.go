// Package metrics records per-operation events and aggregates them into
// per-mode summaries.
//
// Standard and bulk traffic are kept apart by a single predicate on the
// event, so a bulk backfill never skews interactive statistics. The event
// log is append-only; summaries are computed on read.
package metrics
