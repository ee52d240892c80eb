package ir

import (
	"fmt"
)

// Operator identifies a constraint-tree node type. The operator set is
// closed: anything outside it is rejected by the operator-allowlist gate.
type Operator string

const (
	OpAdd         Operator = "add"
	OpMultiply    Operator = "multiply"
	OpDivide      Operator = "divide"
	OpPower       Operator = "power"
	OpReference   Operator = "reference"
	OpConstant    Operator = "constant"
	OpEquals      Operator = "equals"
	OpLessThan    Operator = "less_than"
	OpGreaterThan Operator = "greater_than"
)

// KnownOperators is the closed universe of operator node types.
var KnownOperators = map[Operator]bool{
	OpAdd:         true,
	OpMultiply:    true,
	OpDivide:      true,
	OpPower:       true,
	OpReference:   true,
	OpConstant:    true,
	OpEquals:      true,
	OpLessThan:    true,
	OpGreaterThan: true,
}

// IsComparison reports whether the operator is a comparison node.
// Comparison nodes are only valid at the root of a constraint tree.
func (op Operator) IsComparison() bool {
	return op == OpEquals || op == OpLessThan || op == OpGreaterThan
}

// IsCommutative reports whether operand order is semantically irrelevant.
// Commutative operand lists are sorted during canonicalization so that
// structurally different inputs with the same meaning serialize identically.
func (op Operator) IsCommutative() bool {
	return op == OpAdd || op == OpMultiply || op == OpEquals
}

// ConstraintNode is one node of a typed constraint expression tree.
//
// Leaves are OpReference (Ref holds a quantity id resolvable in the pinned
// ontology snapshot) or OpConstant (Value holds a literal). Interior nodes
// hold Operands. The validator enforces arity and leaf typing; this type
// only carries structure.
type ConstraintNode struct {
	Op       Operator          `json:"op"`
	Operands []*ConstraintNode `json:"operands,omitempty"`
	Ref      string            `json:"ref,omitempty"`
	Value    float64           `json:"value,omitempty"`
}

// Arity bounds per operator. Divide and power are strictly binary and
// order-sensitive; add/multiply are n-ary.
func (op Operator) arityOK(n int) bool {
	switch op {
	case OpReference, OpConstant:
		return n == 0
	case OpDivide, OpPower:
		return n == 2
	case OpEquals, OpLessThan, OpGreaterThan:
		return n == 2
	case OpAdd, OpMultiply:
		return n >= 2
	default:
		return false
	}
}

// CheckShape validates structural well-formedness of the tree: known
// operators, correct arity, leaves carrying the right payload. It does not
// consult the ontology or any allowlist; those are gate concerns.
func (n *ConstraintNode) CheckShape() error {
	if n == nil {
		return fmt.Errorf("nil constraint node")
	}
	if !KnownOperators[n.Op] {
		return fmt.Errorf("unknown operator %q", n.Op)
	}
	if !n.Op.arityOK(len(n.Operands)) {
		return fmt.Errorf("operator %q: invalid operand count %d", n.Op, len(n.Operands))
	}
	switch n.Op {
	case OpReference:
		if n.Ref == "" {
			return fmt.Errorf("reference node missing quantity id")
		}
	case OpConstant:
		// Value zero is legal; nothing to check.
	default:
		if n.Ref != "" {
			return fmt.Errorf("operator %q: ref is only valid on reference nodes", n.Op)
		}
	}
	for i, child := range n.Operands {
		if child != nil && child.Op.IsComparison() {
			return fmt.Errorf("operator %q: comparison nested at operand %d", n.Op, i)
		}
		if err := child.CheckShape(); err != nil {
			return fmt.Errorf("operand %d: %w", i, err)
		}
	}
	return nil
}

// References returns every quantity id referenced anywhere in the tree,
// in depth-first order, duplicates included.
func (n *ConstraintNode) References() []string {
	if n == nil {
		return nil
	}
	var refs []string
	if n.Op == OpReference {
		refs = append(refs, n.Ref)
	}
	for _, child := range n.Operands {
		refs = append(refs, child.References()...)
	}
	return refs
}

// ToIR converts the tree to IR values for canonical serialization.
// Field presence mirrors the JSON shape: leaves carry ref/value, interior
// nodes carry operands. Operand order is preserved as-is; canonical operand
// ordering is the canonicalizer's job, not the serializer's.
func (n *ConstraintNode) ToIR() (IRValue, error) {
	if n == nil {
		return nil, fmt.Errorf("nil constraint node")
	}
	obj := IRObject{"op": IRString(string(n.Op))}
	switch n.Op {
	case OpReference:
		obj["ref"] = IRString(n.Ref)
	case OpConstant:
		obj["value"] = IRFloat(n.Value)
	default:
		ops := make(IRArray, len(n.Operands))
		for i, child := range n.Operands {
			ir, err := child.ToIR()
			if err != nil {
				return nil, fmt.Errorf("operand %d: %w", i, err)
			}
			ops[i] = ir
		}
		obj["operands"] = ops
	}
	return obj, nil
}

// CanonicalBytes returns the canonical serialization of the tree.
// Used for structural equality and for sorting commutative operand lists.
func (n *ConstraintNode) CanonicalBytes() ([]byte, error) {
	v, err := n.ToIR()
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(v)
}
