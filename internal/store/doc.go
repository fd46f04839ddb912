// Package store provides a SQLite-backed instance store that serves as a
// local engine adapter.
//
// Instances of every view live in one table keyed by (view, space,
// external_id); the full document is stored as canonical JSON in the
// properties column and filters read it with json_extract. Relations to
// views are stored as {"externalId", "space"} references. Relations to
// plain nested types are stored inline.
//
// List relations to views also produce edge rows, one per reference, so
// edge metadata can be returned with query results and filtered with
// where-edge clauses.
//
// # Deterministic Results
//
// Every select orders by the requested sort keys and then by space and
// external id (COLLATE BINARY), so cursor pagination is stable.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
