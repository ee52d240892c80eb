// Package gate implements the specification validator: a fixed-order,
// multi-stage gate turning a provisional problem spec plus pinned ontology
// snapshot into a single deterministic decision.
//
// Stage order: ambiguity, schema conformance, dimension derivation, operator
// allowlist, envelope, completeness. Contract violations (schema, dimension,
// operator) always outrank content-level CLARIFY findings from the ambiguity
// stage, and once a spec is rejected no later stage is evaluated.
//
// Every stage is a pure function over its inputs. The validator never
// mutates the spec, never heals invalid input, never retries the producer,
// and has no side effects beyond the returned decision.
package gate
