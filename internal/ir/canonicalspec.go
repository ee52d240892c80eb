package ir

import (
	"fmt"
)

// CanonicalQuantity is a quantity after normalization: SI base-unit value,
// canonical unit symbol, and the dimension vector re-derived under canonical
// units.
type CanonicalQuantity struct {
	ID          string   `json:"id"`
	Value       float64  `json:"value"`
	Unit        string   `json:"unit"`
	Dim         Dim      `json:"dim"`
	Uncertainty *float64 `json:"uncertainty,omitempty"`
}

// CanonicalSpec is the derived, immutable form of a validated problem
// description. It is the sole input to kernel selection and execution, and
// SpecID is the content hash that keys caching and provenance.
//
// Invariant: any two ProblemSpecs normalizing to the same canonical content
// produce byte-identical SpecID values.
type CanonicalSpec struct {
	SpecID        string `json:"spec_id"`
	SchemaVersion string `json:"schema_version"`
	Domain        string `json:"domain"`
	ProblemType   string `json:"problem_type"`

	// Quantities sorted by id.
	Quantities []CanonicalQuantity `json:"quantities"`
	// Unknowns sorted lexicographically.
	Unknowns []string `json:"unknowns"`
	// Constraints in fixed per-node-type order, commutative operand lists
	// sorted by canonical bytes.
	Constraints []*ConstraintNode `json:"constraints,omitempty"`
	// Assumptions sorted by id.
	Assumptions []Assumption `json:"assumptions,omitempty"`

	// OntologyVersion pins the snapshot the spec was normalized under.
	OntologyVersion string `json:"ontology_version"`
}

// ContentIR builds the hashable IR form of the spec. SpecID itself is
// excluded: the id is a hash of this content, not part of it.
func (c *CanonicalSpec) ContentIR() (IRObject, error) {
	quantities := make(IRArray, len(c.Quantities))
	for i, q := range c.Quantities {
		obj := IRObject{
			"id":    IRString(q.ID),
			"value": IRFloat(q.Value),
			"unit":  IRString(q.Unit),
			"dim":   q.Dim.ToIR(),
		}
		if q.Uncertainty != nil {
			obj["uncertainty"] = IRFloat(*q.Uncertainty)
		}
		quantities[i] = obj
	}

	constraints := make(IRArray, len(c.Constraints))
	for i, node := range c.Constraints {
		v, err := node.ToIR()
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i, err)
		}
		constraints[i] = v
	}

	assumptions := make(IRArray, len(c.Assumptions))
	for i, a := range c.Assumptions {
		assumptions[i] = IRObject{
			"id":         IRString(a.ID),
			"provenance": IRString(string(a.Provenance)),
		}
	}

	return IRObject{
		"schema_version":   IRString(c.SchemaVersion),
		"domain":           IRString(c.Domain),
		"problem_type":     IRString(c.ProblemType),
		"quantities":       quantities,
		"unknowns":         StringList(c.Unknowns),
		"constraints":      constraints,
		"assumptions":      assumptions,
		"ontology_version": IRString(c.OntologyVersion),
	}, nil
}

// ComputeSpecID hashes the canonical content and returns the spec id.
// It does not mutate the receiver.
func (c *CanonicalSpec) ComputeSpecID() (string, error) {
	content, err := c.ContentIR()
	if err != nil {
		return "", err
	}
	data, err := MarshalCanonical(content)
	if err != nil {
		return "", fmt.Errorf("compute spec id: %w", err)
	}
	return HashSpec(data), nil
}
