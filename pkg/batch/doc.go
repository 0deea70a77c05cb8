// Package batch loads hierarchical relational data in fixed-size batches.
//
// The primary key space is partitioned into batches of a configured size. For
// each batch every dependent table is queried once, scoped to that batch's
// primary identifiers, and the results are indexed in memory by parent id.
// Primary rows for the batch are then fetched and joined against the index
// before being handed to the consumer. Key properties:
//   - One query per dependent table per batch, independent of row counts
//   - Peak memory bounded by one batch (plus the optional prefetch window)
//   - Deterministic batch membership through a stable total ordering
//   - Batches delivered in increasing order, each batch completely or not at all
//
// Batch numbers start at 1.
package batch
