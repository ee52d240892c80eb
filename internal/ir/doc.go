// Package ir provides the canonical intermediate representation for veritas.
//
// This package contains type definitions, canonical JSON serialization, and
// content-addressed hashing. All other internal packages import ir; ir
// imports nothing internal. This keeps ir the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - Dimensions are always derived, never carried as authoritative input
//   - Confidence is an opaque metadata type that no decision path can read
//     as a number
//   - Floats use a fixed-width scientific encoding in canonical JSON so that
//     identical float64 values always serialize to identical bytes
//   - All JSON tags use snake_case
package ir
