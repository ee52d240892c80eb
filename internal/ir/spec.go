package ir

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// AssumptionProvenance records who introduced an assumption.
type AssumptionProvenance string

const (
	ProvenanceUser   AssumptionProvenance = "user"
	ProvenanceSystem AssumptionProvenance = "system"
	ProvenanceModel  AssumptionProvenance = "model"
)

// ValidAssumptionProvenances defines the allowed provenance values.
var ValidAssumptionProvenances = map[AssumptionProvenance]bool{
	ProvenanceUser:   true,
	ProvenanceSystem: true,
	ProvenanceModel:  true,
}

// Confidence is an upstream-reported confidence score, stored as metadata
// only. It is deliberately opaque: no method exposes the raw number, so a
// decision function cannot alias it into a decision path. The only consumer
// is audit serialization, which receives a preformatted string.
type Confidence struct {
	raw      float64
	reported bool
}

// NewConfidence records an upstream confidence value as opaque metadata.
func NewConfidence(v float64) Confidence {
	return Confidence{raw: v, reported: true}
}

// Reported reports whether an upstream value was present at all.
// It says nothing about the value.
func (c Confidence) Reported() bool {
	return c.reported
}

// AuditString renders the value for audit records. The string form is
// intentionally the only way the value leaves this type.
func (c Confidence) AuditString() string {
	if !c.reported {
		return ""
	}
	return strconv.FormatFloat(c.raw, 'f', 4, 64)
}

// UnmarshalJSON accepts a bare number.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	*c = NewConfidence(v)
	return nil
}

// MarshalJSON round-trips a reported value, for transport only.
func (c Confidence) MarshalJSON() ([]byte, error) {
	if !c.reported {
		return []byte("null"), nil
	}
	return json.Marshal(c.raw)
}

// Quantity is a declared quantity in an untrusted ProblemSpec.
//
// There is no dimension field: dimensions are derived by the validator from
// the ontology, never accepted from the producer.
type Quantity struct {
	ID          string     `json:"id"`
	Magnitude   float64    `json:"magnitude"`
	Unit        string     `json:"unit"`
	Uncertainty *float64   `json:"uncertainty,omitempty"`
	Confidence  Confidence `json:"confidence,omitempty"`
}

// Assumption is a declared modeling assumption with explicit provenance.
type Assumption struct {
	ID         string               `json:"id"`
	Text       string               `json:"text,omitempty"`
	Provenance AssumptionProvenance `json:"provenance"`
}

// ProblemSpec is the provisional, fully untrusted problem description
// produced by the upstream extractor. It is ephemeral: consumed exactly once
// by the specification validator and never mutated.
//
// Every safety-relevant fact in it (dimensions, completeness) is re-derived
// downstream, never trusted as given.
type ProblemSpec struct {
	SchemaVersion string `json:"schema_version"`
	Domain        string `json:"domain"`
	ProblemType   string `json:"problem_type"`

	Quantities  []Quantity        `json:"quantities"`
	Unknowns    []string          `json:"unknowns"`
	Constraints []*ConstraintNode `json:"constraints,omitempty"`
	Assumptions []Assumption      `json:"assumptions,omitempty"`

	// MissingRequired lists fields the producer itself flagged as absent.
	MissingRequired []string `json:"missing_required,omitempty"`

	// Attempt is the externally supplied, monotonically increasing
	// clarify-loop counter. This core has no retry loop of its own; every
	// re-submission is an independent evaluation.
	Attempt int `json:"attempt,omitempty"`

	// Confidence is metadata only; no validation stage reads it.
	Confidence Confidence `json:"confidence,omitempty"`
}

// ParseProblemSpec decodes a raw JSON problem spec.
// Structural schema conformance is checked separately by the gate pipeline;
// this only requires well-formed JSON of roughly the right shape.
func ParseProblemSpec(data []byte) (*ProblemSpec, error) {
	var spec ProblemSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse problem spec: %w", err)
	}
	return &spec, nil
}
