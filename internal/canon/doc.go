// Package canon normalizes validated problem specs into canonical form.
//
// Canonicalization is a pure function of (spec, ontology snapshot): aliases
// collapse to canonical quantity ids, magnitudes convert to SI base units,
// sign conventions apply, and every list is sorted into a fixed order. The
// result's spec_id is a domain-separated content hash over the canonical
// serialization, so two differently-worded specs describing the same problem
// hash to the same id.
//
// Canonicalize is idempotent: feeding a canonical spec back through produces
// byte-identical output and the same spec_id.
package canon
