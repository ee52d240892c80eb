// Package ontology provides read-only, versioned reference data: quantity
// identifiers and aliases, dimension definitions, per-domain operator
// allowlists, and admissible ranges.
//
// A request pins exactly one immutable Snapshot for its entire lifetime, so
// a mid-flight ontology upgrade can never yield an internally inconsistent
// decision. Snapshots are built once at load time from declarative YAML
// descriptors; duplicate ids are rejected at load, not discovered at
// runtime.
package ontology
