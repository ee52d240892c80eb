// Package store provides durable storage for canonical specs, validated
// results, and gate audit records.
//
// SQLite with WAL mode. Writes are idempotent: canonical specs are
// content-addressed by spec_id, and results are unique per (spec_id,
// kernel_id, kernel_version) because a numeric-deterministic kernel can only
// ever produce one answer for one spec. Audit records are append-only.
package store
