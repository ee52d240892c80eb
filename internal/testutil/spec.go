package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/veritas/internal/ir"
)

// SpecBuilder assembles problem specs for tests with sensible defaults.
// The zero value is not usable; start from NewSpec.
type SpecBuilder struct {
	spec ir.ProblemSpec
}

// NewSpec starts a builder for a (domain, problem type) with schema version
// 1.2.0.
func NewSpec(domain, problemType string) *SpecBuilder {
	return &SpecBuilder{spec: ir.ProblemSpec{
		SchemaVersion: "1.2.0",
		Domain:        domain,
		ProblemType:   problemType,
		// Non-nil so JSON serialization yields arrays, not nulls.
		Quantities: []ir.Quantity{},
		Unknowns:   []string{},
	}}
}

// Quantity adds a declared quantity.
func (b *SpecBuilder) Quantity(id string, magnitude float64, unit string) *SpecBuilder {
	b.spec.Quantities = append(b.spec.Quantities, ir.Quantity{
		ID:        id,
		Magnitude: magnitude,
		Unit:      unit,
	})
	return b
}

// QuantityU adds a declared quantity with an uncertainty.
func (b *SpecBuilder) QuantityU(id string, magnitude float64, unit string, uncertainty float64) *SpecBuilder {
	b.spec.Quantities = append(b.spec.Quantities, ir.Quantity{
		ID:          id,
		Magnitude:   magnitude,
		Unit:        unit,
		Uncertainty: &uncertainty,
	})
	return b
}

// Unknown adds an unknown term.
func (b *SpecBuilder) Unknown(terms ...string) *SpecBuilder {
	b.spec.Unknowns = append(b.spec.Unknowns, terms...)
	return b
}

// Assume adds an assumption.
func (b *SpecBuilder) Assume(id string, provenance ir.AssumptionProvenance) *SpecBuilder {
	b.spec.Assumptions = append(b.spec.Assumptions, ir.Assumption{ID: id, Provenance: provenance})
	return b
}

// Constrain adds a constraint tree.
func (b *SpecBuilder) Constrain(node *ir.ConstraintNode) *SpecBuilder {
	b.spec.Constraints = append(b.spec.Constraints, node)
	return b
}

// MissingRequired flags producer-declared missing fields.
func (b *SpecBuilder) MissingRequired(fields ...string) *SpecBuilder {
	b.spec.MissingRequired = append(b.spec.MissingRequired, fields...)
	return b
}

// Build returns the assembled spec.
func (b *SpecBuilder) Build() *ir.ProblemSpec {
	spec := b.spec
	return &spec
}

// JSON serializes the assembled spec, failing the test on error.
func (b *SpecBuilder) JSON(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(b.spec)
	require.NoError(t, err)
	return data
}

// Ref builds a reference constraint leaf.
func Ref(term string) *ir.ConstraintNode {
	return &ir.ConstraintNode{Op: ir.OpReference, Ref: term}
}

// Const builds a constant constraint leaf.
func Const(v float64) *ir.ConstraintNode {
	return &ir.ConstraintNode{Op: ir.OpConstant, Value: v}
}

// Eq builds an equality constraint.
func Eq(left, right *ir.ConstraintNode) *ir.ConstraintNode {
	return &ir.ConstraintNode{Op: ir.OpEquals, Operands: []*ir.ConstraintNode{left, right}}
}

// Add builds an addition node.
func Add(operands ...*ir.ConstraintNode) *ir.ConstraintNode {
	return &ir.ConstraintNode{Op: ir.OpAdd, Operands: operands}
}

// Mul builds a multiplication node.
func Mul(operands ...*ir.ConstraintNode) *ir.ConstraintNode {
	return &ir.ConstraintNode{Op: ir.OpMultiply, Operands: operands}
}

// Div builds a division node.
func Div(num, den *ir.ConstraintNode) *ir.ConstraintNode {
	return &ir.ConstraintNode{Op: ir.OpDivide, Operands: []*ir.ConstraintNode{num, den}}
}

// Pow builds a power node.
func Pow(base, exp *ir.ConstraintNode) *ir.ConstraintNode {
	return &ir.ConstraintNode{Op: ir.OpPower, Operands: []*ir.ConstraintNode{base, exp}}
}
