package canon

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/roach88/veritas/internal/ir"
	"github.com/roach88/veritas/internal/ontology"
)

// Canonicalizer normalizes validated specs under one pinned ontology
// snapshot. It holds no mutable state and is safe for concurrent use.
type Canonicalizer struct {
	ont *ontology.Snapshot
}

// New builds a canonicalizer over a pinned ontology snapshot.
func New(ont *ontology.Snapshot) *Canonicalizer {
	return &Canonicalizer{ont: ont}
}

// Canonicalize derives the canonical form of a spec that has already passed
// the gate pipeline. The input is not mutated. Errors indicate content the
// gate should have rejected (unresolvable terms, unparseable units); they
// mean the engine wiring is broken and abort the request.
func (c *Canonicalizer) Canonicalize(spec *ir.ProblemSpec) (*ir.CanonicalSpec, error) {
	quantities, err := c.canonQuantities(spec.Quantities)
	if err != nil {
		return nil, err
	}
	unknowns, err := c.canonUnknowns(spec.Unknowns)
	if err != nil {
		return nil, err
	}
	constraints, err := c.canonConstraints(spec.Constraints)
	if err != nil {
		return nil, err
	}

	out := &ir.CanonicalSpec{
		SchemaVersion:   spec.SchemaVersion,
		Domain:          spec.Domain,
		ProblemType:     spec.ProblemType,
		Quantities:      quantities,
		Unknowns:        unknowns,
		Constraints:     constraints,
		Assumptions:     canonAssumptions(spec.Assumptions),
		OntologyVersion: c.ont.Version(),
	}

	id, err := out.ComputeSpecID()
	if err != nil {
		return nil, err
	}
	out.SpecID = id
	return out, nil
}

func (c *Canonicalizer) canonQuantities(qs []ir.Quantity) ([]ir.CanonicalQuantity, error) {
	byID := make(map[string]ir.CanonicalQuantity, len(qs))
	for _, q := range qs {
		def, ok := c.ont.Resolve(q.ID)
		if !ok {
			return nil, fmt.Errorf("canon: unresolvable quantity term %q", q.ID)
		}
		uv, err := c.ont.ParseUnit(q.Unit)
		if err != nil {
			return nil, fmt.Errorf("canon: quantity %q: %w", q.ID, err)
		}

		// Re-derive the dimension from the canonical unit rather than
		// trusting the definition; a mismatch here is a corrupted snapshot.
		canonUV, err := c.ont.ParseUnit(def.CanonicalUnit)
		if err != nil {
			return nil, fmt.Errorf("canon: canonical unit %q: %w", def.CanonicalUnit, err)
		}
		if canonUV.Dim != def.Dim || uv.Dim != def.Dim {
			return nil, fmt.Errorf("canon: dimension mismatch for %q", def.ID)
		}

		value := uv.ToSI(q.Magnitude)
		if def.SignConvention == "flip_negative" && value < 0 {
			value = -value
		}
		if value == 0 {
			value = 0 // collapse negative zero
		}

		cq := ir.CanonicalQuantity{
			ID:    def.ID,
			Value: value,
			Unit:  def.CanonicalUnit,
			Dim:   def.Dim,
		}
		if q.Uncertainty != nil {
			// Uncertainty is a delta: scale factor applies, offset does not.
			u := *q.Uncertainty * uv.Factor
			cq.Uncertainty = &u
		}

		if prev, dup := byID[def.ID]; dup {
			if !sameQuantity(prev, cq) {
				return nil, fmt.Errorf("canon: conflicting declarations for %q", def.ID)
			}
			continue
		}
		byID[def.ID] = cq
	}

	out := make([]ir.CanonicalQuantity, 0, len(byID))
	for _, cq := range byID {
		out = append(out, cq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sameQuantity(a, b ir.CanonicalQuantity) bool {
	if a.ID != b.ID || a.Value != b.Value || a.Unit != b.Unit || a.Dim != b.Dim {
		return false
	}
	switch {
	case a.Uncertainty == nil && b.Uncertainty == nil:
		return true
	case a.Uncertainty == nil || b.Uncertainty == nil:
		return false
	default:
		return *a.Uncertainty == *b.Uncertainty
	}
}

func (c *Canonicalizer) canonUnknowns(terms []string) ([]string, error) {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		def, ok := c.ont.Resolve(t)
		if !ok {
			return nil, fmt.Errorf("canon: unresolvable unknown term %q", t)
		}
		if seen[def.ID] {
			continue
		}
		seen[def.ID] = true
		out = append(out, def.ID)
	}
	sort.Strings(out)
	return out, nil
}

// canonConstraints normalizes each tree (canonical ids at leaves,
// commutative operand lists sorted), then sorts and dedupes the list itself
// by canonical serialization.
func (c *Canonicalizer) canonConstraints(nodes []*ir.ConstraintNode) ([]*ir.ConstraintNode, error) {
	type keyed struct {
		node *ir.ConstraintNode
		key  []byte
	}
	ks := make([]keyed, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		if n == nil {
			continue
		}
		cn, err := c.normalizeNode(n)
		if err != nil {
			return nil, fmt.Errorf("canon: constraint %d: %w", i, err)
		}
		key, err := cn.CanonicalBytes()
		if err != nil {
			return nil, fmt.Errorf("canon: constraint %d: %w", i, err)
		}
		if seen[string(key)] {
			continue
		}
		seen[string(key)] = true
		ks = append(ks, keyed{node: cn, key: key})
	}
	sort.Slice(ks, func(i, j int) bool { return bytes.Compare(ks[i].key, ks[j].key) < 0 })

	out := make([]*ir.ConstraintNode, len(ks))
	for i, k := range ks {
		out[i] = k.node
	}
	return out, nil
}

func (c *Canonicalizer) normalizeNode(n *ir.ConstraintNode) (*ir.ConstraintNode, error) {
	out := &ir.ConstraintNode{Op: n.Op, Ref: n.Ref, Value: n.Value}
	switch n.Op {
	case ir.OpReference:
		def, ok := c.ont.Resolve(n.Ref)
		if !ok {
			return nil, fmt.Errorf("unresolvable reference %q", n.Ref)
		}
		out.Ref = def.ID
	case ir.OpConstant:
		if out.Value == 0 {
			out.Value = 0
		}
	}

	if len(n.Operands) > 0 {
		out.Operands = make([]*ir.ConstraintNode, 0, len(n.Operands))
		for _, op := range n.Operands {
			cn, err := c.normalizeNode(op)
			if err != nil {
				return nil, err
			}
			out.Operands = append(out.Operands, cn)
		}
		if n.Op.IsCommutative() {
			keys := make(map[*ir.ConstraintNode][]byte, len(out.Operands))
			for _, op := range out.Operands {
				key, err := op.CanonicalBytes()
				if err != nil {
					return nil, err
				}
				keys[op] = key
			}
			sort.SliceStable(out.Operands, func(i, j int) bool {
				return bytes.Compare(keys[out.Operands[i]], keys[out.Operands[j]]) < 0
			})
		}
	}
	return out, nil
}

// canonAssumptions sorts by (id, provenance) and drops exact duplicates.
// When duplicates differ only in free text, the lexicographically smallest
// text survives so the output is order-insensitive.
func canonAssumptions(as []ir.Assumption) []ir.Assumption {
	byKey := make(map[string]ir.Assumption, len(as))
	for _, a := range as {
		key := a.ID + "\x00" + string(a.Provenance)
		prev, ok := byKey[key]
		if !ok || a.Text < prev.Text {
			byKey[key] = a
		}
	}
	out := make([]ir.Assumption, 0, len(byKey))
	for _, a := range byKey {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Provenance < out[j].Provenance
	})
	return out
}
