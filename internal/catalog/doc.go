// Package catalog provides the read-mostly, versioned registry of immutable
// compute-routine descriptors and the deterministic selector over it.
//
// Entries are append-only and uniquely keyed by (kernel id, version);
// deprecation annotates an entry with a successor pointer, it never deletes.
// A request pins one immutable Snapshot for its lifetime.
//
// The selector resolves identity only. It performs no computation and holds
// no state: given the same snapshot, canonical spec, and criteria, it always
// returns the same entry.
package catalog
